package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// MiddlewareFactory builds a middleware once deps are known.
	MiddlewareFactory func(d deps.Deps) Middleware
)

type entry struct {
	reg Registrar
	mws []MiddlewareFactory
}

var registry []entry

// Register a registrar with optional middlewares applied to all of its routes.
func Register(reg Registrar, mws ...MiddlewareFactory) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterAll mounts every registered route on r. Called once from server.New().
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		if len(e.mws) == 0 {
			e.reg(r, d)
			continue
		}
		mws := make([]Middleware, 0, len(e.mws))
		for _, f := range e.mws {
			mws = append(mws, f(d))
		}
		e.reg(r.With(mws...), d)
	}
}

// hostOnly restricts routes to the configured Host allow-list.
func hostOnly(d deps.Deps) Middleware {
	return mw.EnforceHost(d.AllowedHosts, d.Logger)
}

// limited returns the shared rate limiter, or a passthrough when none is configured.
func limited(d deps.Deps) Middleware {
	if d.RateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return d.RateLimit
}
