package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

type loginRequest struct {
	Provider string `json:"provider"`
}

type loginResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// Login starts the interactive login. The client must send the user to authorize_url;
// the session appears once the provider redirects back to the callback.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid login request")
				return
			}
		}

		authorizeURL, err := d.Dashboard.Login(r.Context(), req.Provider)
		if err != nil {
			d.Logger.Warn("failed to start login", logger.Error(err))
			writeError(w, http.StatusBadGateway, "failed to start login")
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{AuthorizeURL: authorizeURL})
	}
}

func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Dashboard.Logout(r.Context()); err != nil {
			d.Logger.Warn("sign out incomplete", logger.Error(err))
		}
		respondState(w, d, nil)
	}
}
