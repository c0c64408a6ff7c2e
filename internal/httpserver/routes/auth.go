package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	if d.LoginCallback != nil {
		r.Get(auth.CallbackPath, d.LoginCallback)
	}

	r.Group(func(api chi.Router) {
		api.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		api.Post("/api/auth/login", handlers.Login(d))
		api.Post("/api/auth/logout", handlers.Logout(d))
		api.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).
			Post("/api/session/refresh", handlers.SessionRefresh(d))
	})
}
