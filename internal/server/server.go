// Package server serves the metric API that coverdelta clients read base metrics
// from and send new metrics to.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metricapi"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/queue"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/storage"
)

// Server represents an HTTP server with graceful shutdown capabilities
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// Config holds the configuration for the HTTP server
type Config struct {
	Port   int
	Logger *slog.Logger

	// Storage holds metrics. Required.
	Storage storage.Storage

	// Queue receives a MetricRecorded event per stored metric. Optional.
	Queue queue.MessageQueue

	// APIKeys are the accepted bearer tokens. Empty disables authentication.
	APIKeys []string
}

// New creates a new HTTP server with the given configuration
func New(cfg Config) (*Server, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux:    mux,
		logger: cfg.Logger,
	}

	mux.HandleFunc("GET /health", s.healthHandler)

	metrics := NewMetricsHandler(cfg.Storage, cfg.Queue, cfg.Logger)
	auth := APIKey(cfg.APIKeys, cfg.Logger)
	mux.Handle("GET "+metricapi.MetricsPath, auth(http.HandlerFunc(metrics.GetMetric)))
	mux.Handle("POST "+metricapi.MetricsPath, auth(http.HandlerFunc(metrics.SetMetric)))
	mux.Handle("GET "+metricapi.HistoryPath, auth(http.HandlerFunc(metrics.History)))

	s.httpServer.Handler = Chain(mux,
		RequestID,
		Logging(cfg.Logger),
		Recovery(cfg.Logger),
	)

	return s, nil
}

// Mux returns the server's HTTP multiplexer for registering routes
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handler returns the fully wrapped handler, as served by Start.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server with a timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
