// Package main is the mailsift CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/mailsift/internal/cli"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/mail"
	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/server"
	"github.com/hyperjump/mailsift/internal/storage"
	"github.com/hyperjump/mailsift/internal/watcher"
	"github.com/hyperjump/mailsift/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/mailsift/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When neither exists, defaults
// plus MAILSIFT_* environment overrides are used so the CLI works without a config file.
// Returns the config and the path that was actually loaded ("" when none was).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			if err := config.ApplyEnv(cfg); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "classify":
		runClassify()
	case "scan":
		runScan()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("mailsift version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fail prints a message to stderr and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

// setup loads config and builds a logger for direct-mode commands.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, per-message results)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sf := components.Sifter
	watchSvc := watcher.New(
		func(path string) {
			resp, err := sf.ClassifyFile(ctx, path, models.EngineModel)
			if err != nil {
				logger.Warn("watch classify failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("message classified",
				zap.String("path", path),
				zap.String("prediction", resp.Prediction),
				zap.Float64("confidence", resp.Confidence))
		},
		watcher.WithDirectories(cfg.Watch.Directories...),
		watcher.WithExtensions(cfg.Watch.Extensions...),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithRemoveHandler(func(path string) {
			logger.Debug("message removed; history kept", zap.String("path", path))
		}),
		watcher.WithLogger(logger.Named("watcher")),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}

	// The server answers 503 for the model engine until this load succeeds. Mail that
	// arrived while loading is picked up by the sync afterwards.
	go func() {
		if err := loadClassifier(ctx, components, logger); err == nil {
			watchSvc.SyncExistingFiles()
		}
	}()

	srv := server.NewServer(
		components.Sifter,
		components.Classifier,
		components.Storage,
		cfg,
		logger.Named("server"),
		watchSvc,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// reorderArgs moves any flags (and their values) that appear after positional arguments
// to the front so that flag.Parse() sees them. Go's flag package stops at the first
// non-flag argument, so "mailsift classify \"text\" -engine rules" would otherwise
// leave -engine unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// classifyInput returns the text to classify: the message file when file is set, stdin when
// the only argument is "-", otherwise the positional arguments joined with spaces.
func classifyInput(args []string, file string, stdin io.Reader) (text, source string, err error) {
	switch {
	case file != "":
		text, err = mail.NewExtractor().Extract(file)
		if err != nil {
			return "", "", err
		}
		abs, absErr := filepath.Abs(file)
		if absErr != nil {
			abs = file
		}
		return text, abs, nil
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(io.LimitReader(stdin, mail.MaxMessageBytes))
		if err != nil {
			return "", "", err
		}
		text, _ := mail.NewExtractor().ExtractBytes(b, ".eml")
		return text, "stdin", nil
	default:
		return strings.TrimSpace(strings.Join(args, " ")), "cli", nil
	}
}

func runClassify() {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = classify locally without a server)")
	engine := fs.String("engine", string(models.EngineModel), "engine: model or rules")
	file := fs.String("file", "", "classify the message file at this path (.eml or .txt)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format := parseFormat(*outputFormat)
	text, source, err := classifyInput(fs.Args(), *file, os.Stdin)
	if err != nil {
		fail("Failed to read input: %v", err)
	}
	req := &models.ClassifyRequest{Content: text, Engine: models.Engine(*engine), Source: source}
	if err := req.Validate(); err != nil {
		fail("%v", err)
	}

	ctx := context.Background()
	var resp *models.ClassifyResponse
	if *serverURL != "" {
		resp, err = cli.NewClient(*serverURL).Classify(ctx, req)
	} else {
		resp, err = classifyDirect(ctx, *configPath, req)
	}
	if err != nil {
		fail("Failed to classify email: %v", err)
	}
	if err := cli.WriteResult(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func classifyDirect(ctx context.Context, configPath string, req *models.ClassifyRequest) (*models.ClassifyResponse, error) {
	cfg, _, logger := setup(configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	if req.Engine == models.EngineModel {
		if err := loadClassifier(ctx, components, logger); err != nil {
			return nil, err
		}
	}
	return components.Sifter.Classify(ctx, req)
}

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	engine := fs.String("engine", string(models.EngineModel), "engine: model or rules")
	record := fs.Bool("record", true, "record results in history")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: mailsift scan [flags] <directory>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	eng := models.Engine(*engine)
	if err := (&models.ClassifyRequest{Content: "x", Engine: eng}).Validate(); err != nil {
		fail("%v", err)
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, *record)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if eng == models.EngineModel {
		if err := loadClassifier(ctx, components, logger); err != nil {
			fail("Failed to load classifier: %v", err)
		}
	}
	outcomes, err := components.Sifter.ClassifyDirectory(ctx, fs.Arg(0), cfg.Watch.Extensions, eng)
	if werr := cli.WriteScan(os.Stdout, outcomes, format); werr != nil {
		fail("Output failed: %v", werr)
	}
	if err != nil {
		fail("Scan stopped: %v", err)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the history database directly)")
	limit := fs.Int("limit", 20, "number of entries")
	offset := fs.Int("offset", 0, "entries to skip")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	ctx := context.Background()
	var history *models.HistoryResponse
	if *serverURL != "" {
		var err error
		history, err = cli.NewClient(*serverURL).History(ctx, *offset, *limit)
		if err != nil {
			fail("History failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		items, err := components.Storage.List(ctx, *offset, *limit)
		if err != nil {
			fail("History failed: %v", err)
		}
		total, err := components.Storage.Count(ctx)
		if err != nil {
			fail("History failed: %v", err)
		}
		history = &models.HistoryResponse{Items: items, Total: total}
	}
	if err := cli.WriteHistory(os.Stdout, history, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the classifier locally)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	ctx := context.Background()
	var status *models.StatusResponse
	if *serverURL != "" {
		var err error
		status, err = cli.NewClient(*serverURL).Status(ctx)
		if err != nil {
			fail("Status failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		_ = loadClassifier(ctx, components, logger)
		count, err := components.Storage.Count(ctx)
		if err != nil {
			fail("Count history failed: %v", err)
		}
		status = &models.StatusResponse{
			State:       components.Classifier.State().String(),
			Dimensions:  components.Classifier.Dimensions(),
			Classified:  count,
			Provider:    cfg.Embedding.Provider,
			WeightsPath: cfg.Classifier.WeightsPath,
		}
		if loadErr := components.Classifier.LastError(); loadErr != nil {
			status.LoadError = loadErr.Error()
		}
		if size, err := storage.DiskUsageBytes(storage.DatabaseFiles(cfg.Storage.DatabasePath)...); err == nil {
			status.DiskUsageBytes = &size
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mailsift watch <add|remove|list> [path]")
		fmt.Println("  mailsift watch add <path>     Add mail-drop directory to watch")
		fmt.Println("  mailsift watch remove <path>  Remove directory from watch")
		fmt.Println("  mailsift watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	syncExisting := fs.Bool("sync", true, "classify messages already in the directory (add only)")
	outputFormat := fs.String("output", "text", "output format: text or json (list only)")
	_ = fs.Parse(reorderArgs(os.Args[3:]))

	client := cli.NewClient(*serverURL)
	ctx := context.Background()
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: mailsift watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fail("Invalid path: %v", err)
		}
		if sub == "add" {
			if err := client.AddWatchDirectory(ctx, path, *syncExisting); err != nil {
				fail("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := client.RemoveWatchDirectory(ctx, path); err != nil {
			fail("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.WatchDirectories(ctx)
		if err != nil {
			fail("List failed: %v", err)
		}
		if err := cli.WriteDirectories(os.Stdout, dirs, parseFormat(*outputFormat)); err != nil {
			fail("Output failed: %v", err)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mailsift - Local spam/ham email classifier

Usage:
  mailsift server [flags]             Start the HTTP server and mail-drop watcher
  mailsift classify [flags] <text>    Classify text (or --file message.eml, or - for stdin)
  mailsift scan [flags] <dir>         Classify every message in a directory
  mailsift history [flags]            Show recent classifications
  mailsift status [flags]             Show classifier and storage status
  mailsift watch <add|remove|list>    Manage watched mail-drop directories
  mailsift version                    Show version
  mailsift help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mailsift/config.yaml)
  --debug            Enable debug logging

Classify Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to classify locally.
  --engine string    model (default) or rules
  --file string      Message file to classify
  --output string    Output format: text or json (default: text)
  --config string    Config file path (local mode)

Scan Flags:
  --engine string    model (default) or rules
  --record           Record results in history (default: true)
  --output string    Output format: text or json (default: text)
  --config string    Config file path

History / Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --limit int        Entries to show (history, default: 20)
  --offset int       Entries to skip (history)
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)
  --sync             Classify existing messages when adding (default: true)

Environment:
  MAILSIFT_*         Overrides config values, e.g. MAILSIFT_SERVER_PORT=9090,
                     MAILSIFT_EMBEDDING_PROVIDER=onnx, MAILSIFT_RULES_PHRASES="free,winner"

Examples:
  mailsift server
  mailsift classify "Congratulations, you won the lottery"
  mailsift classify --engine rules --output json "Buy now, limited discount"
  mailsift classify --server "" --file ~/Mail/inbox/1234.eml
  mailsift scan ~/Mail/inbox
  mailsift history --limit 50
  mailsift watch add ~/Mail/drop`)
}
