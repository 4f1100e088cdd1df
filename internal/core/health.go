package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout is the maximum time allowed for all health probes to complete.
// If any probe exceeds this deadline, the health check returns 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a critical dependency that must be operational for
// the service to function.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the health check against the subsystem.
	// It should respect the context deadline and return an error if the subsystem
	// is unhealthy or unreachable.
	Check(ctx context.Context) error
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// PingProbe adapts a Ping function (for example pgxpool.Pool.Ping) to a
// HealthProbe.
type PingProbe struct {
	ProbeName string
	Ping      func(ctx context.Context) error
}

// Name implements HealthProbe.
func (p PingProbe) Name() string { return p.ProbeName }

// Check implements HealthProbe.
func (p PingProbe) Check(ctx context.Context) error { return p.Ping(ctx) }

// HandleHealth executes all registered health probes concurrently with a short timeout.
// Returns 200 OK if all probes report healthy, 503 Service Unavailable if any
// critical subsystem fails or if the global timeout is exceeded.
//
// This endpoint is public and is mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Version: s.version()})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	// Buffered so late probes never block after the deadline.
	results := make(chan probeResult, len(probes))
	for _, probe := range probes {
		go func(p HealthProbe) {
			var err error
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("probe panicked: %v", rvr)
				}
				results <- probeResult{name: p.Name(), err: err}
			}()
			err = p.Check(ctx)
		}(probe)
	}

	components := make(map[string]componentStatus, len(probes))
	for _, p := range probes {
		components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
	}

	allHealthy := true
collect:
	for range probes {
		select {
		case res := <-results:
			if res.err != nil {
				allHealthy = false
				components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
			} else {
				components[res.name] = componentStatus{Status: "healthy"}
			}
		case <-ctx.Done():
			allHealthy = false
			break collect
		}
	}

	resp := healthResponse{Status: "healthy", Version: s.version(), Components: components}
	if !allHealthy {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}

func (s *Server) version() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Build.Version
}
