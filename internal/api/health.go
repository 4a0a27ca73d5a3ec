package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 3 * time.Second

// handleHealth reports service status, counts and the state of each
// configured dependency. Any failing dependency makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var mu sync.Mutex
	components := make(map[string]string, len(s.checks))
	healthy := true

	var g errgroup.Group
	for name, check := range s.checks {
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			components[name] = status
			if status != "ok" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // checks report through components, never through the group

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"readings":   s.readings.Count(),
		"commands":   s.history.Count(),
		"ws_clients": s.hub.ClientCount(),
		"components": components,
	})
}
