package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

// Categorize classifies every bookmark of an uploaded X export and stores the batch.
func Categorize(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, cleanup, err := formFile(w, r, d.MaxUploadBytes)
		if err != nil {
			writeUploadError(w, d.Logger, err)
			return
		}
		defer cleanup()

		raw, err := io.ReadAll(file)
		if err != nil {
			writeError(w, d.Logger, fmt.Errorf("%w: read upload: %v", domain.ErrMalformedInput, err))
			return
		}

		d.Logger.Info("categorize upload received",
			logger.String("filename", header.Filename),
			logger.Int64("size", header.Size))

		result, err := d.Ingester.Ingest(r.Context(), raw)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
