package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/embedding"
	"github.com/hyperjump/mailsift/internal/rules"
	"github.com/hyperjump/mailsift/internal/sifter"
	"github.com/hyperjump/mailsift/internal/storage"
	"go.uber.org/zap"
)

// Components holds the long-lived pieces shared by the server and direct-mode commands.
type Components struct {
	Storage    *storage.SQLiteStorage
	Embeddings *embedding.SharedProvider
	Classifier *classifier.Classifier
	Rules      *rules.Engine
	Sifter     *sifter.Sifter
}

// Close disposes the model, then closes the embedder and storage.
func (c *Components) Close() {
	if c.Classifier != nil {
		c.Classifier.Dispose()
	}
	if c.Embeddings != nil {
		_ = c.Embeddings.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage, the classifier and the keyword engine. The classifier is
// returned Unloaded; callers decide whether to load it in the background or wait for it.
// record controls whether classifications are written to history.
func initializeComponents(cfg *config.Config, logger *zap.Logger, record bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	clf := classifier.New(provider.Acquire,
		classifier.WithModelSource(classifier.SourceFor(&cfg.Classifier)),
		classifier.WithLogger(logger.Named("classifier")),
	)

	keywords, err := rules.New(cfg.Rules.Phrases)
	if err != nil {
		_ = provider.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to build keyword rules: %w", err)
	}

	opts := []sifter.Option{sifter.WithLogger(logger.Named("sifter"))}
	if record {
		opts = append(opts, sifter.WithHistory(store))
	}

	logger.Info("components initialized",
		zap.String("database_path", cfg.Storage.DatabasePath),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("weights_path", cfg.Classifier.WeightsPath),
		zap.Int("phrases", len(cfg.Rules.Phrases)),
	)

	return &Components{
		Storage:    store,
		Embeddings: provider,
		Classifier: clf,
		Rules:      keywords,
		Sifter:     sifter.New(clf, keywords, opts...),
	}, nil
}

// loadClassifier loads the model and logs the outcome. The error is returned for callers that
// cannot continue without the model.
func loadClassifier(ctx context.Context, c *Components, logger *zap.Logger) error {
	if err := c.Classifier.Load(ctx); err != nil {
		logger.Warn("model engine unavailable; the rules engine still works", zap.Error(err))
		return err
	}
	return nil
}
