// Package server provides the HTTP API for kamoku.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/config"
	"github.com/hyperjump/kamoku/internal/indexer"
	"github.com/hyperjump/kamoku/internal/metrics"
	"github.com/hyperjump/kamoku/internal/search"
)

const (
	defaultQueryTimeout = 10 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

// RebuildFunc reloads the corpus, builds and persists a snapshot and swaps it
// into the engine.
type RebuildFunc func(ctx context.Context) (*indexer.Snapshot, error)

// Server is the HTTP server for the kamoku API.
type Server struct {
	engine    *search.Engine
	rebuild   RebuildFunc
	diskUsage func() (int64, error)
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server

	rebuildMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithRebuild enables POST /api/v1/rebuild.
func WithRebuild(fn RebuildFunc) Option {
	return func(s *Server) { s.rebuild = fn }
}

// WithDiskUsage reports artifact disk usage in /api/v1/status.
func WithDiskUsage(fn func() (int64, error)) Option {
	return func(s *Server) { s.diskUsage = fn }
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(s.queryTimeout())).Post("/search", s.handleSearch)
		r.Get("/courses/{code}", s.handleGetCourse)
		r.Get("/status", s.handleStatus)
		r.Post("/rebuild", s.handleRebuild)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) queryTimeout() time.Duration {
	if s.config != nil && s.config.QueryTimeout > 0 {
		return s.config.QueryTimeout
	}
	return defaultQueryTimeout
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
