package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
)

const readyzProbeTimeout = 2 * time.Second

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Mode       string                     `json:"mode"` // "optimal" | "degraded" | "critical"
	Components map[string]componentStatus `json:"components"`
}

// Readyz probes the database and the optional label cache. The service is
// ready (200) as long as the database answers; a cache outage only degrades it.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzProbeTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"cache":    checkCache(ctx, d),
			"x_import": {OK: true, Mode: enabled(d.XAuth != nil)},
			"convert":  {OK: true, Mode: enabled(d.Converter != nil)},
		}

		resp := readyzResponse{
			Ready:      components["database"].OK,
			Mode:       readinessMode(components),
			Components: components,
		}

		w.Header().Set("Cache-Control", "no-store")
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func readinessMode(components map[string]componentStatus) string {
	if !components["database"].OK {
		return "critical"
	}
	if !components["cache"].OK {
		return "degraded"
	}
	return "optimal"
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Impact: "bookmarks-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkCache(ctx context.Context, d deps.Deps) componentStatus {
	if d.LabelCache == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	if err := d.LabelCache.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "every-item-calls-workflow",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "enabled"}
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
