package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
)

type bookmarksResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// ListBookmarks returns stored bookmarks, newest first, optionally filtered by ?category_id=.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var categoryID *int64
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, d.Logger, fmt.Errorf("%w: category_id must be an integer", domain.ErrMalformedInput))
				return
			}
			categoryID = &id
		}

		bookmarks, err := d.Store.ListBookmarks(r.Context(), categoryID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if bookmarks == nil {
			bookmarks = []domain.Bookmark{}
		}
		writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: bookmarks})
	}
}
