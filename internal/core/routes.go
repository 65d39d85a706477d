package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fieldmap/internal/types"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// the configuration does not set one. It sits just under the API Gateway
// integration limit.
const defaultRequestTimeout = 29 * time.Second

// requestTimeoutMargin is added to the interpolation timeout so that loading
// readings has room before the request is cut off.
const requestTimeoutMargin = 5 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the /v1 group, root-level routes and the health check.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, errCodeRouteNotFound, kindRouting, "no route for "+r.URL.Path, nil)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, kindRouting, "method "+r.Method+" is not allowed on "+r.URL.Path, nil)
	})

	s.router.Route("/v1", s.mountV1)
	for _, registrar := range s.RootRouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer        - Catches panics; outermost to catch all failures.
//  2. ContextTimeout   - Soft deadline before the platform's hard timeout.
//  3. RequestID        - Generates/propagates the correlation ID.
//  4. SecurityHeaders  - Present on every response, errors included.
//  5. RequestLogger    - Structured logging (redacted headers).
//  6. CORS             - Answers preflight before any limiting.
//  7. Metrics          - Request latency recording.
//  8. RateLimit        - Per-client token buckets.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.RateLimit)
}

func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Interpolation.Timeout > 0 {
		return s.Config.Interpolation.Timeout + requestTimeoutMargin
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// observe it as a cancelled context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses the incoming X-Request-Id header or generates a
// UUID. The ID is stored in the context via types.WithRequestID and echoed
// in the X-Request-Id response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
