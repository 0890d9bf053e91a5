package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	"github.com/brojonat/genesis/service/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the wallet session service.
type Server struct {
	addr     string
	registry *session.Registry
	journal  JournalReader
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The journal is optional - if nil, the journal endpoint responds 404.
// The metrics is optional - if nil, the metrics endpoint isn't registered.
func New(addr string, registry *session.Registry, journal JournalReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		journal:  journal,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the routed handler, wrapped in CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}

	// Session routes
	route("POST /api/v1/sessions", handleCreateSession(s.registry, s.logger))
	route("GET /api/v1/sessions", handleListSessions(s.registry))
	route("GET /api/v1/sessions/{id}", handleGetSession(s.registry))
	route("DELETE /api/v1/sessions/{id}", handleDeleteSession(s.registry, s.logger))
	route("POST /api/v1/sessions/{id}/connect", handleConnect(s.registry, s.logger))
	route("POST /api/v1/sessions/{id}/disconnect", handleDisconnect(s.registry, s.logger))
	route("POST /api/v1/sessions/{id}/transactions", handleSendTransaction(s.registry, s.logger))
	route("POST /api/v1/sessions/{id}/balance/refresh", handleRefreshBalance(s.registry, s.logger))
	route("GET /api/v1/sessions/{id}/stream", handleStreamSession(s.registry, s.metrics, s.logger))

	// Journal
	route("GET /api/v1/journal", handleListJournal(s.journal, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Transfers block until settlement and streams stay open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "journal", s.journal != nil)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and closes every session,
// which ends open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.registry.Close()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
