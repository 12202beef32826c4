package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
	Keys    *int64 `json:"keys,omitempty"`
	Total   *int   `json:"total,omitempty"`
	Open    *int   `json:"open,omitempty"`
	Running *bool  `json:"running,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports each component and an overall mode: "optimal", "degraded"
// (cache down or some circuits open) or "critical" (store down or no
// provider usable).
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"store":     checkStore(ctx, d),
			"cache":     checkCache(ctx, d),
			"providers": checkProviders(d),
		}
		running := d.Aggregator.Running()
		components["aggregation"] = componentStatus{OK: true, Running: &running}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	if p, ok := components["providers"]; ok && !p.OK {
		return "critical"
	}
	if c, ok := components["cache"]; ok && !c.OK {
		return "degraded"
	}
	if p, ok := components["providers"]; ok && p.Open != nil && *p.Open > 0 {
		return "degraded"
	}
	return "optimal"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StoreBackend, Impact: "aggregation-disabled", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreBackend}
}

func checkCache(ctx context.Context, d deps.Deps) componentStatus {
	st := d.Aggregator.CacheStats(ctx)
	if !st.Connected {
		return componentStatus{OK: false, Mode: "disabled", Impact: "every-search-hits-upstream"}
	}
	keys := st.KeyCount
	return componentStatus{OK: true, Mode: "redis", Keys: &keys}
}

func checkProviders(d deps.Deps) componentStatus {
	infos := d.Aggregator.Providers()
	total, open, usable := len(infos), 0, 0
	for _, p := range infos {
		if p.Circuit != nil && p.Circuit.State == breaker.StateOpen {
			open++
		}
		if !p.Disabled && (p.Circuit == nil || p.Circuit.State != breaker.StateOpen) {
			usable++
		}
	}
	return componentStatus{OK: usable > 0, Total: &total, Open: &open}
}
