// Package core provides the API chassis for the beneplan checkout platform:
// a chi router with the cross-cutting middleware chain (panic recovery,
// request correlation, structured logging, metrics) applied before requests
// reach the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"beneplan/internal/config"
)

// MetricsCollector records API telemetry. The prometheus-backed
// implementation lives in internal/metrics; nil disables recording.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// V1RouteRegistrar mounts a domain handler's routes under /v1. The entry
// point populates these; the indirection keeps core free of handler imports.
type V1RouteRegistrar func(r chi.Router)

// Server bundles the dependencies of the HTTP surface so tests can inject
// their own.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	HealthProbes      []HealthProbe
	V1RouteRegistrars []V1RouteRegistrar

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	router *chi.Mux

	// onShutdown runs in registration order during Shutdown.
	onShutdown []func(context.Context) error
}

// NewServer initializes the server. Routes are mounted separately via
// MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup hook run during Shutdown.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Shutdown runs the registered cleanup hooks. The first failure is returned
// but remaining hooks still run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, fn := range s.onShutdown {
		if err := fn(ctx); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
