package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

// Convert turns an uploaded bookmark CSV into the JSON array /categorize accepts.
func Convert(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, cleanup, err := formFile(w, r, d.MaxUploadBytes)
		if err != nil {
			writeUploadError(w, d.Logger, err)
			return
		}
		defer cleanup()

		d.Logger.Info("csv conversion requested",
			logger.String("filename", header.Filename),
			logger.Int64("size", header.Size))

		tweets, err := d.Converter.ConvertCSV(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, tweets)
	}
}
