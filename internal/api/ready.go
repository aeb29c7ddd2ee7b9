package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/nidhogg/nuka-academy/internal/provider"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 5 * time.Second

// Pinger is a backing service that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// readiness pings every backing service and provider concurrently. The
// service is ready when all backing services answer and at least one
// provider does.
func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var provs []provider.Provider
	if h.providers != nil {
		provs = h.providers.ListProviders()
	}

	results := make([]checkResult, len(names)+len(provs))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = toResult(name, h.checks[name].Ping(ctx))
			return nil
		})
	}
	for i, p := range provs {
		g.Go(func() error {
			results[len(names)+i] = toResult("provider:"+p.ID(), p.HealthCheck(ctx))
			return nil
		})
	}
	g.Wait()

	ready, anyProvider := true, false
	for i, res := range results {
		if i < len(names) && !res.OK {
			ready = false
		}
		if i >= len(names) && res.OK {
			anyProvider = true
		}
	}
	status, code := "ready", http.StatusOK
	if !ready || !anyProvider {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": results})
}

func toResult(name string, err error) checkResult {
	if err != nil {
		return checkResult{Name: name, Error: err.Error()}
	}
	return checkResult{Name: name, OK: true}
}
