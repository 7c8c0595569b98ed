// Package embedding provides the text embedding capability consumed by the classifier.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/mailsift/internal/config"
)

// Embedder produces a fixed-length vector for a text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Provider acquires an Embedder. The classifier calls it once per load cycle.
type Provider func(ctx context.Context) (Embedder, error)

// Static returns a Provider that always hands out e.
func Static(e Embedder) Provider {
	return func(ctx context.Context) (Embedder, error) {
		return e, nil
	}
}

// SharedProvider builds one Embedder on first successful acquisition and hands the same
// instance to every later caller. Failed builds are not remembered, so a later Acquire retries.
type SharedProvider struct {
	build func(ctx context.Context) (Embedder, error)

	mu       sync.Mutex
	embedder Embedder
}

// NewSharedProvider wraps build.
func NewSharedProvider(build func(ctx context.Context) (Embedder, error)) *SharedProvider {
	return &SharedProvider{build: build}
}

// Acquire returns the shared Embedder, building it if needed. It has the Provider signature.
func (s *SharedProvider) Acquire(ctx context.Context) (Embedder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedder != nil {
		return s.embedder, nil
	}
	e, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.embedder = e
	return e, nil
}

// Close closes the shared Embedder if one was built.
func (s *SharedProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedder == nil {
		return nil
	}
	err := s.embedder.Close()
	s.embedder = nil
	return err
}

// NewProvider returns a SharedProvider for the configured embedding backend.
// The "onnx" backend reports its initialization error rather than falling back to hashing.
func NewProvider(cfg *config.EmbeddingConfig) (*SharedProvider, error) {
	switch cfg.Provider {
	case config.ProviderONNX:
		return NewSharedProvider(func(ctx context.Context) (Embedder, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
			if err != nil {
				return nil, err
			}
			return NewCachedEmbedder(e, cfg.CacheSize), nil
		}), nil
	case config.ProviderHash, "":
		return NewSharedProvider(func(ctx context.Context) (Embedder, error) {
			return NewCachedEmbedder(NewHashEmbedder(cfg.Dimensions), cfg.CacheSize), nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
