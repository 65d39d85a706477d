// Package core provides the HTTP chassis for the FieldMap API.
// It creates a chi router that serves both standard HTTP (for local dev and
// containers) and AWS Lambda HTTP API events (via chiadapter). It enforces
// cross-cutting concerns (logging, rate limiting, observability and error
// rendering) before requests reach domain-specific handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldmap/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records API request latency for one completed request.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts routes on a router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies of the HTTP API, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars are mounted under /v1; RootRouteRegistrars at the
	// top level. Handler packages register here from main, which keeps core
	// free of imports on them.
	V1RouteRegistrars   []RouteRegistrar
	RootRouteRegistrars []RouteRegistrar

	limiter   *clientLimiter
	onCleanup []func(context.Context) error
	router    *chi.Mux
}

// NewServer initializes dependencies and prepares the router. The caller
// mounts routes with MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}
	if cfg.Security.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	}

	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.onCleanup = append(s.onCleanup, fn)
}

// Shutdown releases server resources: metrics are flushed, schedulers
// stopped and database pools closed by the registered cleanup functions.
// Every function runs even if an earlier one fails.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, fn := range s.onCleanup {
		if err := fn(ctx); err != nil {
			s.Logger.Error("shutdown step failed", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutting down: %w", errors.Join(errs...))
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
