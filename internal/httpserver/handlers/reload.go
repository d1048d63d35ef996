package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

type reloadResponse struct {
	SeedReload    string `json:"seed_reload"` // "triggered" | "busy" | "disabled"
	LabelsFlushed bool   `json:"labels_flushed"`
}

// Reload re-applies the category seed file. With ?flush_labels=true it also
// drops every cached classification.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := reloadResponse{SeedReload: "disabled"}

		if d.SeedTrigger != nil {
			select {
			case d.SeedTrigger <- struct{}{}:
				resp.SeedReload = "triggered"
				d.Logger.Info("manual seed reload triggered via endpoint",
					logger.String("remote_ip", r.RemoteAddr))
			default:
				resp.SeedReload = "busy"
				d.Logger.Warn("seed reload already pending",
					logger.String("remote_ip", r.RemoteAddr))
			}
		}

		if flush, _ := strconv.ParseBool(r.URL.Query().Get("flush_labels")); flush && d.LabelCache != nil {
			if err := d.LabelCache.FlushLabels(r.Context()); err != nil {
				writeError(w, d.Logger, err)
				return
			}
			resp.LabelsFlushed = true
			d.Logger.Info("label cache flushed via endpoint")
		}

		status := http.StatusAccepted
		if resp.SeedReload == "busy" && !resp.LabelsFlushed {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, resp)
	}
}
