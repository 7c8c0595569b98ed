// Package storage defines persistence for classification history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/mailsift/internal/models"
)

// ErrNotFound is returned when a classification does not exist.
var ErrNotFound = errors.New("classification not found")

// Storage records classification outcomes.
type Storage interface {
	Record(ctx context.Context, c *models.Classification) error
	Get(ctx context.Context, id string) (*models.Classification, error)
	List(ctx context.Context, offset, limit int) ([]*models.Classification, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
