package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/handlers"
)

func init() { Register(registerQuery, hostOnly) }

func registerQuery(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.ListBookmarks(d))
	r.Get("/categories", handlers.ListCategories(d))
	r.Post("/categories", handlers.CreateCategory(d))
}
