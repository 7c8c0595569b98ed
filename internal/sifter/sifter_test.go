package sifter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/mail"
	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/rules"
	"github.com/hyperjump/mailsift/internal/storage"
)

// fakeModel reports spam when the text contains "prize".
type fakeModel struct {
	calls atomic.Int32
	err   error
}

func (f *fakeModel) Classify(_ context.Context, text string) (classifier.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return classifier.Result{}, f.err
	}
	if strings.Contains(text, "prize") {
		return classifier.Decide(0.9), nil
	}
	return classifier.Decide(0.2), nil
}

func newTestSifter(t *testing.T, model Classifier) (*Sifter, *storage.SQLiteStorage) {
	t.Helper()
	engine, err := rules.New(config.DefaultPhrases)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(model, engine, WithHistory(store)), store
}

func TestSifter_ClassifyModel(t *testing.T) {
	model := &fakeModel{}
	s, store := newTestSifter(t, model)
	ctx := context.Background()

	resp, err := s.Classify(ctx, &models.ClassifyRequest{Content: "  Claim your free prize  "})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != "spam" || resp.Confidence != 0.9 || resp.Engine != models.EngineModel {
		t.Errorf("got %+v", resp)
	}
	if len(resp.Signals) != 1 || resp.Signals[0] != "free" {
		t.Errorf("signals = %v", resp.Signals)
	}
	if resp.ID == "" {
		t.Fatal("expected history ID")
	}

	rec, err := store.Get(ctx, resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Source != "api" || rec.Excerpt != "Claim your free prize" || rec.Prediction != "spam" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSifter_ClassifyRules(t *testing.T) {
	model := &fakeModel{}
	s, _ := newTestSifter(t, model)

	resp, err := s.Classify(context.Background(), &models.ClassifyRequest{Content: "Lunch tomorrow?", Engine: models.EngineRules})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != "ham" || resp.Confidence != rules.HamConfidence {
		t.Errorf("got %+v", resp)
	}
	if model.calls.Load() != 0 {
		t.Error("rules engine should not call the model")
	}
}

func TestSifter_RejectsEmptyBeforeModel(t *testing.T) {
	model := &fakeModel{}
	s, store := newTestSifter(t, model)

	_, err := s.Classify(context.Background(), &models.ClassifyRequest{Content: " \n "})
	if !errors.Is(err, models.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if model.calls.Load() != 0 {
		t.Error("model should not be called for empty content")
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("nothing should be recorded, got %d", n)
	}
}

func TestSifter_ModelErrorsPassThrough(t *testing.T) {
	s, store := newTestSifter(t, &fakeModel{err: classifier.ErrNotLoaded})
	_, err := s.Classify(context.Background(), &models.ClassifyRequest{Content: "hi"})
	if !errors.Is(err, classifier.ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("failed classification should not be recorded, got %d", n)
	}
}

func TestSifter_ClassifyFileReplacesEntry(t *testing.T) {
	s, store := newTestSifter(t, &fakeModel{})
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.eml")

	if err := os.WriteFile(path, []byte("Subject: hello\n\nsee you at lunch\n"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := s.ClassifyFile(ctx, path, models.EngineModel)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != mail.MessageID(path) || first.Prediction != "ham" {
		t.Errorf("first = %+v", first)
	}

	if err := os.WriteFile(path, []byte("Subject: winner\n\nclaim your prize\n"), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := s.ClassifyFile(ctx, path, models.EngineModel)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || second.Prediction != "spam" {
		t.Errorf("second = %+v", second)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	rec, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Source != path || rec.Prediction != "spam" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSifter_ClassifyFileErrors(t *testing.T) {
	s, _ := newTestSifter(t, &fakeModel{})
	dir := t.TempDir()
	if _, err := s.ClassifyFile(context.Background(), filepath.Join(dir, "missing.eml"), models.EngineModel); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := s.ClassifyFile(context.Background(), dir, models.EngineModel); err == nil {
		t.Error("expected error for directory")
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClassifyFile(context.Background(), empty, models.EngineModel); !errors.Is(err, models.ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestSifter_ClassifyDirectory(t *testing.T) {
	s, _ := newTestSifter(t, &fakeModel{})
	dir := t.TempDir()
	files := map[string]string{
		"a.eml":       "Subject: prize\n\nyou won a prize",
		"sub/b.txt":   "meeting notes",
		"sub/c.txt":   "  ",
		"skip.pdf":    "binary",
		".hidden.eml": "prize",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	outcomes, err := s.ClassifyDirectory(context.Background(), dir, mail.DefaultExtensions, models.EngineModel)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d: %+v", len(outcomes), outcomes)
	}
	byName := map[string]FileOutcome{}
	for _, o := range outcomes {
		byName[filepath.Base(o.Path)] = o
	}
	if o := byName["a.eml"]; o.Response == nil || o.Response.Prediction != "spam" {
		t.Errorf("a.eml = %+v", o)
	}
	if o := byName["b.txt"]; o.Response == nil || o.Response.Prediction != "ham" {
		t.Errorf("b.txt = %+v", o)
	}
	if o := byName["c.txt"]; o.Error == "" {
		t.Errorf("c.txt should fail as empty: %+v", o)
	}
}

func TestSifter_ClassifyDirectoryStopsWhenNotLoaded(t *testing.T) {
	s, _ := newTestSifter(t, &fakeModel{err: classifier.ErrNotLoaded})
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.eml"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := s.ClassifyDirectory(context.Background(), dir, nil, models.EngineModel)
	if !errors.Is(err, classifier.ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if _, err := s.ClassifyDirectory(context.Background(), filepath.Join(dir, "a.eml"), nil, models.EngineModel); err == nil {
		t.Error("expected error for non-directory")
	}
}
