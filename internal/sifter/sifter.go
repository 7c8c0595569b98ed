// Package sifter runs classification requests end to end: validation, the chosen engine,
// keyword signals, and recording the outcome in history.
package sifter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/mail"
	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/rules"
	"github.com/hyperjump/mailsift/internal/storage"
	"github.com/hyperjump/mailsift/pkg/utils"
	"go.uber.org/zap"
)

const excerptLen = 200

// Classifier scores text with the model engine.
type Classifier interface {
	Classify(ctx context.Context, text string) (classifier.Result, error)
}

// Sifter classifies requests and message files.
type Sifter struct {
	model     Classifier
	rules     *rules.Engine
	history   storage.Storage
	extractor *mail.Extractor
	logger    *zap.Logger
}

// Option configures a Sifter.
type Option func(*Sifter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sifter) { s.logger = utils.OrNop(l) }
}

// WithHistory records every successful classification in history.
func WithHistory(h storage.Storage) Option {
	return func(s *Sifter) { s.history = h }
}

// New returns a Sifter using model for the model engine and keywords (required) for the rules
// engine and for signals.
func New(model Classifier, keywords *rules.Engine, opts ...Option) *Sifter {
	s := &Sifter{
		model:     model,
		rules:     keywords,
		extractor: mail.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify validates req, runs the requested engine and records the outcome.
// Validation failures wrap models.ErrInvalidRequest. Model engine failures are the
// classifier's errors unchanged (classifier.ErrNotLoaded, *classifier.ClassificationError).
func (s *Sifter) Classify(ctx context.Context, req *models.ClassifyRequest) (*models.ClassifyResponse, error) {
	return s.classify(ctx, "", req)
}

func (s *Sifter) classify(ctx context.Context, id string, req *models.ClassifyRequest) (*models.ClassifyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var res classifier.Result
	switch req.Engine {
	case models.EngineRules:
		res = s.rules.Classify(req.Content)
	default:
		var err error
		res, err = s.model.Classify(ctx, req.Content)
		if err != nil {
			return nil, err
		}
	}

	resp := &models.ClassifyResponse{
		Prediction: string(res.Prediction),
		Confidence: res.Confidence,
		Engine:     req.Engine,
		Signals:    s.rules.Matches(req.Content),
		TookMs:     time.Since(start).Milliseconds(),
	}

	if s.history != nil {
		rec := &models.Classification{
			ID:         id,
			Source:     req.Source,
			Prediction: resp.Prediction,
			Confidence: resp.Confidence,
			Engine:     resp.Engine,
			Excerpt:    utils.Excerpt(req.Content, excerptLen),
		}
		if err := s.history.Record(ctx, rec); err != nil {
			s.logger.Warn("failed to record classification", zap.String("source", req.Source), zap.Error(err))
		} else {
			resp.ID = rec.ID
		}
	}

	s.logger.Debug("classification",
		zap.String("source", req.Source),
		zap.String("engine", string(resp.Engine)),
		zap.String("prediction", resp.Prediction),
		zap.Float64("confidence", resp.Confidence),
		zap.Strings("signals", resp.Signals))
	return resp, nil
}

// ClassifyFile extracts the message at path and classifies it with engine. The history ID is
// derived from the absolute path, so reclassifying a file replaces its entry.
func (s *Sifter) ClassifyFile(ctx context.Context, path string, engine models.Engine) (*models.ClassifyResponse, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	text, err := s.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract message: %w", err)
	}
	req := &models.ClassifyRequest{Content: text, Engine: engine, Source: absPath}
	return s.classify(ctx, mail.MessageID(absPath), req)
}

// FileOutcome is the result of classifying one file during a directory scan.
type FileOutcome struct {
	Path     string                   `json:"path"`
	Response *models.ClassifyResponse `json:"response,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// ClassifyDirectory walks dir recursively and classifies each regular file whose extension is
// in allowedExts (all files when empty). Per-file failures are reported in the outcomes; the
// returned error is for the walk itself, ctx cancellation, or the model not being loaded.
func (s *Sifter) ClassifyDirectory(ctx context.Context, dir string, allowedExts []string, engine models.Engine) ([]FileOutcome, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var outcomes []FileOutcome
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !mail.MatchExtension(path, allowedExts) {
			return nil
		}
		resp, err := s.ClassifyFile(ctx, path, engine)
		if err != nil {
			if errors.Is(err, classifier.ErrNotLoaded) {
				return err
			}
			outcomes = append(outcomes, FileOutcome{Path: path, Error: err.Error()})
			return nil
		}
		outcomes = append(outcomes, FileOutcome{Path: path, Response: resp})
		return nil
	})
	return outcomes, err
}
