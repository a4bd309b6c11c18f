// Package api serves the billing webhook ingress and health endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/amora-chat/amora/pkg/observability"
)

// Header names used for request correlation.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Server is the HTTP server for provider webhooks.
type Server struct {
	mux      *http.ServeMux
	server   *http.Server
	logger   *slog.Logger
	webhooks *WebhookHandler
	health   *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health may be nil.
func NewServer(cfg ServerConfig, webhooks *WebhookHandler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		webhooks: webhooks,
		health:   health,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("POST /webhooks/{provider}", s.webhooks.HandleWebhook)
}

// Handler returns the root handler with request correlation applied.
func (s *Server) Handler() http.Handler {
	return withRequestContext(s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := s.health.Check(ctx)
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting webhook API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down webhook API server")
	return s.server.Shutdown(ctx)
}

// withRequestContext gives every request a request id and a correlation id.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = r.Header.Get(HeaderRequestID)
		}
		ctx := observability.NewRequestContext(r.Context(), correlationID)
		w.Header().Set(HeaderRequestID, observability.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
