package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mailsift/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS classifications (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		prediction TEXT NOT NULL CHECK (prediction IN ('spam', 'ham')),
		confidence REAL NOT NULL,
		engine TEXT NOT NULL,
		excerpt TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record stores c, assigning an ID and timestamp when unset. A row with the same ID is replaced.
func (s *SQLiteStorage) Record(ctx context.Context, c *models.Classification) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO classifications (id, source, prediction, confidence, engine, excerpt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Source, c.Prediction, c.Confidence, string(c.Engine), c.Excerpt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record classification: %w", err)
	}
	return nil
}

// Get returns a classification by ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*models.Classification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, prediction, confidence, engine, excerpt, created_at
		 FROM classifications WHERE id = ?`, id)
	c, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns classifications newest first.
func (s *SQLiteStorage) List(ctx context.Context, offset, limit int) ([]*models.Classification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, prediction, confidence, engine, excerpt, created_at
		 FROM classifications ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of stored classifications.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classifications`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClassification(row scanner) (*models.Classification, error) {
	var c models.Classification
	var engine string
	var excerpt sql.NullString
	if err := row.Scan(&c.ID, &c.Source, &c.Prediction, &c.Confidence, &engine, &excerpt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Engine = models.Engine(engine)
	c.Excerpt = excerpt.String
	return &c, nil
}
