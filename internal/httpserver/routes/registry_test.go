package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

func withRegistry(t *testing.T, entries []entry) {
	t.Helper()
	saved := registry
	registry = entries
	t.Cleanup(func() { registry = saved })
}

func TestRegisterAllAppliesFactories(t *testing.T) {
	var built int
	tag := func(d deps.Deps) Middleware {
		built++
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Tag", d.Version)
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

	withRegistry(t, nil)
	Register(func(r chi.Router, _ deps.Deps) { r.Get("/tagged", ok) }, tag)
	Register(func(r chi.Router, _ deps.Deps) { r.Get("/plain", ok) })

	r := chi.NewRouter()
	RegisterAll(r, deps.Deps{Version: "v1", Logger: logger.NewNop()})

	if built != 1 {
		t.Errorf("factory built %d times, want 1", built)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tagged", nil))
	if got := rec.Header().Get("X-Tag"); got != "v1" {
		t.Errorf("/tagged X-Tag = %q, want v1", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/plain status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Tag"); got != "" {
		t.Errorf("/plain X-Tag = %q, want none", got)
	}
}

func TestHostOnlyRejectsForeignHost(t *testing.T) {
	withRegistry(t, nil)
	Register(registerQuery, hostOnly)

	r := chi.NewRouter()
	RegisterAll(r, deps.Deps{
		AllowedHosts: []string{"sortmark.example.com"},
		Logger:       logger.NewNop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.Host = "evil.test"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
