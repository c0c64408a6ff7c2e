package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkvault/internal/bookmarks"
	"github.com/MrSnakeDoc/linkvault/internal/dashboard"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// stateStatus maps an operation error to the status sent along with the view.
func stateStatus(err error) int {
	var verr *domain.ValidationError
	var oerr *bookmarks.OpError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &oerr):
		return http.StatusBadGateway
	case errors.Is(err, dashboard.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, dashboard.ErrUnknownBookmark):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondState writes the current view with the status derived from err.
func respondState(w http.ResponseWriter, d deps.Deps, err error) {
	writeJSON(w, stateStatus(err), d.Dashboard.View())
}

func bookmarkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// State returns the current view.
func State(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		respondState(w, d, nil)
	}
}

type draftRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Draft replaces the form's title and url.
func Draft(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid draft")
			return
		}
		d.Dashboard.UpdateDraft(req.Title, req.URL)
		respondState(w, d, nil)
	}
}

// Submit saves the form: create in add mode, update in edit mode.
// An optional body replaces the draft first.
func Submit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			var req draftRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid draft")
				return
			}
			d.Dashboard.UpdateDraft(req.Title, req.URL)
		}

		err := d.Dashboard.Submit(r.Context())
		if err != nil {
			d.Logger.Debug("submit failed", logger.Error(err))
		}
		respondState(w, d, err)
	}
}

// BeginEdit switches the form to edit the bookmark {id}.
func BeginEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookmarkID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid bookmark id")
			return
		}
		respondState(w, d, d.Dashboard.BeginEdit(id))
	}
}

func CancelEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Dashboard.CancelEdit()
		respondState(w, d, nil)
	}
}

func Delete(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bookmarkID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid bookmark id")
			return
		}
		respondState(w, d, d.Dashboard.Delete(r.Context(), id))
	}
}

// Import loads the configured bookmarks.yaml into the signed-in user's bookmarks.
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ImportFile == "" {
			writeError(w, http.StatusNotImplemented, "import file not configured")
			return
		}

		res, err := d.Dashboard.Import(r.Context(), d.ImportFile)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, dashboard.ErrNotSignedIn):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			d.Logger.Error("import failed", logger.String("file", d.ImportFile), logger.Error(err))
			writeJSON(w, http.StatusBadGateway, struct {
				dashboard.ImportResult
				Error string `json:"error"`
			}{res, "import failed"})
		}
	}
}
