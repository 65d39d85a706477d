package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds the whole health check. A probe still running at
// the deadline is reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem check such as the reading source or the
// geometry template.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthReporter is implemented by probes that can describe the state behind
// them, for example how old the cached readings are.
type HealthReporter interface {
	Report() map[string]any
}

// ProbeFunc adapts functions to HealthProbe and HealthReporter.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
	// InfoFn is optional.
	InfoFn func() map[string]any
}

// NewProbe returns a HealthProbe named name that runs fn.
func NewProbe(name string, fn func(ctx context.Context) error) ProbeFunc {
	return ProbeFunc{ProbeName: name, Fn: fn}
}

// WithInfo returns a copy of p that reports info alongside its status.
func (p ProbeFunc) WithInfo(info func() map[string]any) ProbeFunc {
	p.InfoFn = info
	return p
}

// Name implements HealthProbe.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check implements HealthProbe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// Report implements HealthReporter.
func (p ProbeFunc) Report() map[string]any {
	if p.InfoFn == nil {
		return nil
	}
	return p.InfoFn()
}

type componentStatus struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Info      map[string]any `json:"info,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe in parallel under healthCheckTimeout and
// answers 200 when all pass, 503 otherwise. Mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Each goroutine writes only its own slot.
	results := make([]componentStatus, len(s.HealthProbes))
	var g errgroup.Group
	for i, probe := range s.HealthProbes {
		g.Go(func() error {
			results[i] = runProbe(ctx, probe)
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "healthy", Version: s.version()}
	if len(results) > 0 {
		resp.Components = make(map[string]componentStatus, len(results))
	}
	for i, probe := range s.HealthProbes {
		if results[i].Status != "healthy" {
			resp.Status = "unhealthy"
		}
		resp.Components[probe.Name()] = results[i]
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

// runProbe returns once the probe finishes or ctx expires, whichever comes
// first. A probe that ignores ctx is left to finish in the background.
func runProbe(ctx context.Context, probe HealthProbe) componentStatus {
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("probe panicked: %v", rec)
			}
		}()
		done <- probe.Check(ctx)
	}()

	var out componentStatus
	select {
	case err := <-done:
		out.Status = "healthy"
		if err != nil {
			out.Status = "unhealthy"
			out.Message = err.Error()
		}
	case <-ctx.Done():
		out.Status = "unhealthy"
		out.Message = "health check timed out"
	}
	out.LatencyMS = time.Since(start).Milliseconds()

	if rep, ok := probe.(HealthReporter); ok {
		out.Info = rep.Report()
	}
	return out
}

func (s *Server) version() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Build.Version
}
