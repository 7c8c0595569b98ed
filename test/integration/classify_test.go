// Package integration provides tests that wire the real config, storage, and classifier together.
package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/embedding"
	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/nn"
	"github.com/hyperjump/mailsift/internal/rules"
	"github.com/hyperjump/mailsift/internal/sifter"
	"github.com/hyperjump/mailsift/internal/storage"
)

const integrationConfig = `storage:
  database_path: ./data/history.db
embedding:
  provider: hash
  dimensions: 512
  cache_size: 16
classifier:
  weights_path: ./weights.json
rules:
  phrases: ["wire transfer", "gift card"]
`

// spamBiasedWeights scores every input as sigmoid(3), about 0.95 spam.
func spamBiasedWeights() *nn.Weights {
	w := nn.ZeroWeights()
	w.Layers[len(w.Layers)-1].B[0] = 3
	return w
}

func TestIntegration_ClassifyFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := nn.SaveWeights(filepath.Join(dir, "weights.json"), spamBiasedWeights()); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(integrationConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data", "history.db") {
		t.Fatalf("database path = %q", cfg.Storage.DatabasePath)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()
	model := classifier.New(provider.Acquire, classifier.WithModelSource(classifier.SourceFor(&cfg.Classifier)))
	defer model.Dispose()
	keywords, err := rules.New(cfg.Rules.Phrases)
	if err != nil {
		t.Fatal(err)
	}
	sf := sifter.New(model, keywords, sifter.WithHistory(store))
	ctx := context.Background()

	if err := model.Load(ctx); err != nil {
		t.Fatal(err)
	}
	resp, err := sf.Classify(ctx, &models.ClassifyRequest{Content: "Please send the wire transfer by noon"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != string(classifier.Spam) || resp.Confidence < 0.95 {
		t.Errorf("model classify = %+v", resp)
	}
	if len(resp.Signals) != 1 || resp.Signals[0] != "wire transfer" {
		t.Errorf("signals = %v", resp.Signals)
	}

	ruled, err := sf.Classify(ctx, &models.ClassifyRequest{Content: "Buy now, totally free", Engine: models.EngineRules})
	if err != nil {
		t.Fatal(err)
	}
	if ruled.Prediction != string(classifier.Ham) {
		t.Errorf("configured phrases replace the defaults; got %+v", ruled)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	n, err := reopened.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("history after reopen = %d, want 2", n)
	}
	got, err := reopened.Get(ctx, resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Engine != models.EngineModel || got.Source != "api" {
		t.Errorf("stored = %+v", got)
	}
}

func TestIntegration_MissingWeightsFailsLoad(t *testing.T) {
	cfg := &config.Config{}
	cfg.Classifier.WeightsPath = filepath.Join(t.TempDir(), "absent.json")
	config.ApplyDefaults(cfg)
	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()
	model := classifier.New(provider.Acquire, classifier.WithModelSource(classifier.SourceFor(&cfg.Classifier)))

	err = model.Load(context.Background())
	var loadErr *classifier.LoadError
	if !errors.As(err, &loadErr) || loadErr.Stage != "model" {
		t.Fatalf("Load = %v, want model-stage LoadError", err)
	}
	if model.State() != classifier.StateUnloaded || model.LastError() == nil {
		t.Errorf("state = %s, last error = %v", model.State(), model.LastError())
	}
	if _, err := model.Classify(context.Background(), "hello"); !errors.Is(err, classifier.ErrNotLoaded) {
		t.Errorf("Classify after failed load = %v", err)
	}
}
