package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/handlers"
)

func init() { Register(registerIngest, hostOnly) }

func registerIngest(r chi.Router, d deps.Deps) {
	r.With(limited(d)).Post("/categorize", handlers.Categorize(d))

	if d.Converter != nil {
		r.With(limited(d)).Post("/convert", handlers.Convert(d))
	}
}
