package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/xauth"
)

// XLogin redirects the browser to the X consent screen.
func XLogin(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, d.XAuth.LoginURL(), http.StatusFound)
	}
}

// XCallback completes the login, fetches the user's bookmarks and runs them
// through the same pipeline as an uploaded export.
func XCallback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			d.Logger.Warn("x authorization denied", logger.String("error", e))
			writeDetail(w, http.StatusBadRequest, "authorization denied: "+e)
			return
		}

		tok, err := d.XAuth.Exchange(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			if errors.Is(err, xauth.ErrInvalidState) {
				d.Logger.Warn("x callback rejected", logger.Error(err))
				writeDetail(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, d.Logger, err)
			return
		}

		tweets, err := d.XAuth.Bookmarks(r.Context(), tok)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("x bookmarks fetched", logger.Int("count", len(tweets)))

		result, err := d.Ingester.Process(r.Context(), tweets)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
