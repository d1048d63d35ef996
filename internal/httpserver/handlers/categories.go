package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

const maxCategoryBody = 64 << 10

type categoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

type categoryResponse struct {
	Category domain.Category `json:"category"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func ListCategories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := d.Store.ListCategories(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if cats == nil {
			cats = []domain.Category{}
		}
		writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
	}
}

// CreateCategory returns the category with the given name, creating it if needed.
func CreateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCategoryRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCategoryBody))
		if err := dec.Decode(&req); err != nil {
			writeError(w, d.Logger, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrMalformedInput, err))
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, d.Logger, fmt.Errorf("%w: name must not be empty", domain.ErrMalformedInput))
			return
		}

		id, err := d.Store.GetOrCreateCategory(r.Context(), name)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		cat, err := d.Store.GetCategory(r.Context(), id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("category ensured",
			logger.Int64("id", cat.ID),
			logger.String("name", cat.Name))
		writeJSON(w, http.StatusOK, categoryResponse{Category: *cat})
	}
}
