package e2e

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/cli"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/embedding"
	"github.com/hyperjump/mailsift/internal/mail"
	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/rules"
	"github.com/hyperjump/mailsift/internal/server"
	"github.com/hyperjump/mailsift/internal/sifter"
	"github.com/hyperjump/mailsift/internal/storage"
	"github.com/hyperjump/mailsift/internal/watcher"
	"go.uber.org/zap"
)

const e2eDimensions = 512

type e2eEnv struct {
	cfg   *config.Config
	store *storage.SQLiteStorage
	model *classifier.Classifier
	sf    *sifter.Sifter
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "history.db")
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewCachedEmbedder(embedding.NewHashEmbedder(e2eDimensions), cfg.Embedding.CacheSize)
	model := classifier.New(embedding.Static(embedder), classifier.WithModelSource(classifier.SourceFor(&cfg.Classifier)))
	t.Cleanup(func() {
		model.Dispose()
		_ = embedder.Close()
	})

	keywords, err := rules.New(cfg.Rules.Phrases)
	if err != nil {
		t.Fatal(err)
	}
	sf := sifter.New(model, keywords, sifter.WithHistory(store), sifter.WithLogger(zap.NewNop()))
	return &e2eEnv{cfg: cfg, store: store, model: model, sf: sf}
}

func TestE2E_ScanWithRulesMatchesLabels(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	drop := t.TempDir()
	if err := WriteCorpus(drop, corpus); err != nil {
		t.Fatal(err)
	}

	outcomes, err := env.sf.ClassifyDirectory(ctx, drop, env.cfg.Watch.Extensions, models.EngineRules)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != len(corpus.Messages) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(corpus.Messages))
	}

	t.Logf("scanned %d messages (%d spam, %d ham)", len(outcomes), corpus.SpamCount, corpus.HamCount)

	for _, o := range outcomes {
		id := IDFromFileName(filepath.Base(o.Path))
		t.Run(id, func(t *testing.T) {
			if o.Error != "" {
				t.Fatalf("classify %s: %s", o.Path, o.Error)
			}
			m, ok := corpus.ByID(id)
			if !ok {
				t.Fatalf("unknown message %q", id)
			}
			if o.Response.Prediction != string(m.Label) {
				t.Errorf("%s (%s): got %s, want %s; signals %v",
					m.ID, m.Encoding, o.Response.Prediction, m.Label, o.Response.Signals)
			}
			if m.Label == classifier.Spam && len(o.Response.Signals) == 0 {
				t.Errorf("%s: spam verdict without signals", m.ID)
			}
			if o.Response.ID != mail.MessageID(o.Path) {
				t.Errorf("%s: history id %q, want %q", m.ID, o.Response.ID, mail.MessageID(o.Path))
			}
		})
	}

	n, err := env.store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(corpus.Messages)) {
		t.Errorf("history count = %d, want %d", n, len(corpus.Messages))
	}

	// A second scan replaces rows rather than adding new ones.
	if _, err := env.sf.ClassifyDirectory(ctx, drop, env.cfg.Watch.Extensions, models.EngineRules); err != nil {
		t.Fatal(err)
	}
	if n2, _ := env.store.Count(ctx); n2 != n {
		t.Errorf("history count after rescan = %d, want %d", n2, n)
	}
}

func TestE2E_ScanWithModelIsDeterministicAcrossReload(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()
	drop := t.TempDir()
	if err := WriteCorpus(drop, BuildCorpus()); err != nil {
		t.Fatal(err)
	}

	if _, err := env.sf.ClassifyDirectory(ctx, drop, nil, models.EngineModel); err == nil {
		t.Fatal("expected scan to fail before the model is loaded")
	}

	if err := env.model.Load(ctx); err != nil {
		t.Fatal(err)
	}
	first, err := env.sf.ClassifyDirectory(ctx, drop, nil, models.EngineModel)
	if err != nil {
		t.Fatal(err)
	}

	env.model.Dispose()
	if env.model.State() != classifier.StateUnloaded {
		t.Fatalf("state after dispose = %s", env.model.State())
	}
	if err := env.model.Load(ctx); err != nil {
		t.Fatal(err)
	}
	second, err := env.sf.ClassifyDirectory(ctx, drop, nil, models.EngineModel)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("outcome count changed: %d then %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i].Response, second[i].Response
		if a == nil || b == nil {
			t.Fatalf("%s: missing response (%s%s)", first[i].Path, first[i].Error, second[i].Error)
		}
		if a.Prediction != b.Prediction || a.Confidence != b.Confidence {
			t.Errorf("%s: %s/%v then %s/%v", first[i].Path, a.Prediction, a.Confidence, b.Prediction, b.Confidence)
		}
		if a.Confidence < 0.5 || a.Confidence > 1 {
			t.Errorf("%s: confidence %v out of range", first[i].Path, a.Confidence)
		}
	}
}

func TestE2E_WatcherClassifiesDroppedMail(t *testing.T) {
	env := newE2EEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drop := t.TempDir()

	w := watcher.New(func(path string) {
		if _, err := env.sf.ClassifyFile(ctx, path, models.EngineRules); err != nil {
			t.Errorf("classify %s: %v", path, err)
		}
	},
		watcher.WithDirectories(drop),
		watcher.WithExtensions(env.cfg.Watch.Extensions...),
		watcher.WithDebounce(50*time.Millisecond),
	)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	corpus := BuildCorpus()
	spam, _ := corpus.ByID("spam-03")
	path, err := WriteMessage(drop, spam)
	if err != nil {
		t.Fatal(err)
	}
	id := mail.MessageID(path)
	waitForPrediction(t, env.store, id, string(classifier.Spam))

	// Overwriting the file reclassifies it under the same history entry.
	ham, _ := corpus.ByID("ham-03")
	ham.ID = spam.ID
	ham.Encoding = spam.Encoding
	if _, err := WriteMessage(drop, ham); err != nil {
		t.Fatal(err)
	}
	waitForPrediction(t, env.store, id, string(classifier.Ham))

	if n, _ := env.store.Count(ctx); n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}

	// Temporary files are never classified.
	if err := os.WriteFile(filepath.Join(drop, "draft.eml.part"), []byte("Buy now"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n, _ := env.store.Count(ctx); n != 1 {
		t.Errorf("history count after temp file = %d, want 1", n)
	}
}

func TestE2E_ClientAgainstServer(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()
	srv := server.NewServer(env.sf, env.model, env.store, env.cfg, zap.NewNop(), nil, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := cli.NewClient(ts.URL)

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != classifier.StateUnloaded.String() {
		t.Errorf("state = %q before load", status.State)
	}

	_, err = client.Classify(ctx, &models.ClassifyRequest{Content: "hello there"})
	var se *cli.ServerError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("classify before load: %v", err)
	}

	resp, err := client.Classify(ctx, &models.ClassifyRequest{Content: "You are a lucky W1NNER", Engine: models.EngineRules})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Prediction != "spam" || resp.Confidence != rules.SpamConfidence {
		t.Errorf("rules classify = %+v", resp)
	}

	if err := env.model.Load(ctx); err != nil {
		t.Fatal(err)
	}
	resp, err = client.Classify(ctx, &models.ClassifyRequest{Content: "Lunch on Thursday?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Engine != models.EngineModel || resp.ID == "" {
		t.Errorf("model classify = %+v", resp)
	}

	history, err := client.History(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if history.Total != 2 || len(history.Items) != 2 {
		t.Fatalf("history = %d items of %d", len(history.Items), history.Total)
	}
	if history.Items[0].ID != resp.ID {
		t.Errorf("newest item = %q, want %q", history.Items[0].ID, resp.ID)
	}

	status, err = client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != classifier.StateLoaded.String() || status.Dimensions != e2eDimensions {
		t.Errorf("status after load = %+v", status)
	}
}

func waitForPrediction(t *testing.T, store storage.Storage, id, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		if c, err := store.Get(context.Background(), id); err == nil {
			last = c.Prediction
			if last == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("history %s: prediction %q, want %q", id, last, want)
}
