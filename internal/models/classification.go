// Package models defines the request, response, and record types shared by the server, CLI, and storage.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Engine names which scorer produced a result.
type Engine string

const (
	EngineModel Engine = "model"
	EngineRules Engine = "rules"
)

// ErrInvalidRequest is wrapped by every Validate error.
var ErrInvalidRequest = errors.New("invalid request")

// ErrEmptyContent is returned by Validate when the content is empty after trimming.
var ErrEmptyContent = fmt.Errorf("%w: content cannot be empty", ErrInvalidRequest)

// MaxSourceLen bounds the free-form Source label.
const MaxSourceLen = 4096

var validate = validator.New()

// ClassifyRequest is the input for a classification.
type ClassifyRequest struct {
	Content string `json:"content" validate:"required"`
	Engine  Engine `json:"engine,omitempty" validate:"oneof=model rules"`
	Source  string `json:"source,omitempty" validate:"max=4096"` // free-form origin label, e.g. "api" or a file path
}

// Validate trims Content and rejects it when empty, and defaults Engine to the model.
func (r *ClassifyRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return ErrEmptyContent
	}
	if r.Engine == "" {
		r.Engine = EngineModel
	}
	if r.Source == "" {
		r.Source = "api"
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(r, err))
	}
	return nil
}

func describe(r *ClassifyRequest, err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Engine":
		return fmt.Sprintf("unknown engine %q (use %q or %q)", r.Engine, EngineModel, EngineRules)
	case "Source":
		return fmt.Sprintf("source longer than %d characters", MaxSourceLen)
	default:
		return fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag())
	}
}

// ClassifyResponse is the outcome of a classification.
type ClassifyResponse struct {
	ID         string   `json:"id,omitempty"`
	Prediction string   `json:"prediction"`
	Confidence float64  `json:"confidence"`
	Engine     Engine   `json:"engine"`
	Signals    []string `json:"signals,omitempty"` // keyword phrases found in the text
	TookMs     int64    `json:"took_ms"`
}

// Classification is a stored classification outcome.
type Classification struct {
	ID         string    `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	Prediction string    `json:"prediction" db:"prediction"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Engine     Engine    `json:"engine" db:"engine"`
	Excerpt    string    `json:"excerpt" db:"excerpt"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// HistoryResponse is a page of stored classifications, newest first.
type HistoryResponse struct {
	Items []*Classification `json:"items"`
	Total int64             `json:"total"`
}

// StatusResponse describes the classifier and its storage.
type StatusResponse struct {
	State          string `json:"state"`
	LoadError      string `json:"load_error,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
	Classified     int64  `json:"classified"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	Provider       string `json:"embedding_provider,omitempty"`
	WeightsPath    string `json:"weights_path,omitempty"`
}
