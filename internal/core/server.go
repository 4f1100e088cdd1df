// Package core provides the HTTP chassis of the BizPulse API.
// It owns the chi router and enforces cross-cutting concerns (security
// headers, logging, metrics, compression and authentication) before
// requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/config"
)

// Server encapsulates the dependencies of the API chassis so that tests can
// inject fakes for each of them.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// HealthProbes are checked concurrently by GET /health.
	HealthProbes []HealthProbe

	// RateLimitStore enables RateLimit when set; RateLimits holds the rules.
	RateLimitStore RateLimitStore
	RateLimits     RateLimitPolicy

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by cmd/api so that core does not import the handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux

	mu       sync.Mutex
	closers  []func()
	shutdown bool
}

// NewServer validates the critical dependencies and prepares the router.
// Routes are mounted separately via MountRoutes.
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

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in reverse registration
// order (the database pool is registered first and closed last).
func (s *Server) OnShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Shutdown releases the resources registered with OnShutdown. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil
	}
	s.shutdown = true

	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return ctx.Err()
}
