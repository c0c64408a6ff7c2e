package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	// one limiter for every mutating call
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitRPM,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
	})

	r.Group(func(api chi.Router) {
		api.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		api.Get("/api/state", handlers.State(d))

		api.Group(func(m chi.Router) {
			m.Use(limit)
			m.Put("/api/draft", handlers.Draft(d))
			m.Post("/api/edit/cancel", handlers.CancelEdit(d))
			m.Post("/api/bookmarks", handlers.Submit(d))
			m.Post("/api/bookmarks/{id}/edit", handlers.BeginEdit(d))
			m.Delete("/api/bookmarks/{id}", handlers.Delete(d))
			m.Post("/api/import", handlers.Import(d))
		})
	})
}
