// Package server provides the HTTP API for mailsift.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/mailsift/internal/classifier"
	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/sifter"
	"github.com/hyperjump/mailsift/internal/storage"
	"github.com/hyperjump/mailsift/pkg/utils"
	"go.uber.org/zap"
)

// WatchService manages watched mail-drop directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// ClassifierStatus reports the model engine's lifecycle.
type ClassifierStatus interface {
	State() classifier.State
	LastError() error
	Dimensions() int
}

// Server is the HTTP server for the mailsift API.
type Server struct {
	sifter  *sifter.Sifter
	model   ClassifierStatus
	history storage.Storage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	watch         WatchService // nil when watching is disabled
	configPath    string       // where watch changes are persisted; empty disables persistence
	watchConfigMu sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	sf *sifter.Sifter,
	model ClassifierStatus,
	history storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	return &Server{
		sifter:     sf,
		model:      model,
		history:    history,
		config:     cfg,
		logger:     utils.OrNop(logger),
		watch:      watch,
		configPath: configPath,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleGetClassification)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
