package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/handlers"
)

func init() { Register(registerAuth, hostOnly) }

func registerAuth(r chi.Router, d deps.Deps) {
	if d.XAuth == nil {
		return
	}
	r.Route("/auth/x", func(r chi.Router) {
		r.Get("/login", handlers.XLogin(d))
		r.With(limited(d)).Get("/callback", handlers.XCallback(d))
	})
}
