// Package classifier scores email text as spam or ham with an embedder and a small feed-forward network.
//
// A Classifier is meant to be held for the life of the process: call Load once (it is idempotent and
// concurrent callers share one load), then Classify per request. Callers are expected to reject
// empty or whitespace-only text before calling Classify; the classifier does not.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/mailsift/internal/embedding"
	"github.com/hyperjump/mailsift/internal/nn"
	"github.com/hyperjump/mailsift/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is the load state of a Classifier.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

var errDisposedDuringLoad = errors.New("disposed while loading")

// Classifier owns the network and the embedder acquired for it.
type Classifier struct {
	provider embedding.Provider
	source   ModelSource
	logger   *zap.Logger
	loads    singleflight.Group

	mu         sync.RWMutex
	state      State
	generation uint64
	embedder   embedding.Embedder
	model      *nn.Sequential
	lastErr    error
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for load and classify events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = utils.OrNop(l) }
}

// WithModelSource sets how the network is built during Load. Defaults to DemoModel(DefaultSeed).
func WithModelSource(src ModelSource) Option {
	return func(c *Classifier) { c.source = src }
}

// New returns an Unloaded classifier that will acquire its embedder from provider.
func New(provider embedding.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider: provider,
		source:   DemoModel(DefaultSeed),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current load state.
func (c *Classifier) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError returns the error of the most recent failed load, or nil once a load succeeds.
func (c *Classifier) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Dimensions returns the embedding width the loaded model expects, or zero when not loaded.
func (c *Classifier) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.model == nil {
		return 0
	}
	return c.model.InputWidth()
}

// Load acquires the embedder and builds the network. It returns nil immediately when already
// loaded. Concurrent calls share one in-flight load and all receive its outcome.
//
// The load runs to completion even if ctx ends first; in that case Load returns ctx.Err() to
// this caller only. Failures are returned as *LoadError.
func (c *Classifier) Load(ctx context.Context) error {
	if c.State() == StateLoaded {
		return nil
	}
	ch := c.loads.DoChan("load", func() (interface{}, error) {
		return nil, c.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Classifier) load(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateLoaded {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoading
	gen := c.generation
	c.mu.Unlock()

	start := time.Now()
	c.logger.Info("loading classifier")

	emb, err := c.provider(ctx)
	if err != nil {
		return c.failLoad(&LoadError{Stage: "embedder", Cause: err})
	}
	model, err := c.source(ctx)
	if err != nil {
		return c.failLoad(&LoadError{Stage: "model", Cause: err})
	}
	if emb.Dimensions() != model.InputWidth() {
		model.Dispose()
		return c.failLoad(&LoadError{Stage: "model", Cause: fmt.Errorf("%w: embedder produces %d dimensions, model expects %d",
			nn.ErrShape, emb.Dimensions(), model.InputWidth())})
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		model.Dispose()
		return c.failLoad(&LoadError{Stage: "model", Cause: errDisposedDuringLoad})
	}
	c.embedder = emb
	c.model = model
	c.state = StateLoaded
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("classifier loaded",
		zap.String("model", model.String()),
		zap.Int("params", model.ParamCount()),
		zap.Int("dimensions", emb.Dimensions()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (c *Classifier) failLoad(err *LoadError) error {
	c.mu.Lock()
	c.state = StateUnloaded
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Error("classifier load failed", zap.String("stage", err.Stage), zap.Error(err.Cause))
	return err
}

// Classify embeds text and scores it. It returns ErrNotLoaded unless Load has succeeded,
// and *ClassificationError when embedding or the forward pass fails.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	c.mu.RLock()
	state, emb, model := c.state, c.embedder, c.model
	c.mu.RUnlock()
	if state != StateLoaded || emb == nil || model == nil {
		return Result{}, ErrNotLoaded
	}

	start := time.Now()
	v, err := emb.Embed(ctx, text)
	if err != nil {
		return Result{}, &ClassificationError{Cause: fmt.Errorf("embed: %w", err)}
	}
	p, err := model.Predict(v)
	if err != nil {
		if errors.Is(err, nn.ErrDisposed) {
			return Result{}, ErrNotLoaded
		}
		return Result{}, &ClassificationError{Cause: fmt.Errorf("forward: %w", err)}
	}

	res := Decide(p)
	c.logger.Debug("classified",
		zap.String("prediction", string(res.Prediction)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// Dispose releases the network and returns the classifier to Unloaded. The embedder is not
// closed; its lifecycle belongs to the provider. A load in flight when Dispose is called fails.
func (c *Classifier) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.model != nil {
		c.model.Dispose()
		c.logger.Info("classifier disposed")
	}
	c.model = nil
	c.embedder = nil
	if c.state == StateLoaded {
		c.state = StateUnloaded
	}
}
