package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/middleware"
	"github.com/beitak/beitak/internal/models"
)

// ProfileService defines the profile operations required by the ProfileHandler.
type ProfileService interface {
	Get(ctx context.Context, id string) (models.Profile, error)
	Update(ctx context.Context, id string, upd models.ProfileUpdate) error
}

// ProfileHandler serves a user's own profile.
type ProfileHandler struct {
	ProfileService ProfileService
	Log            *zap.Logger
}

// Get handles GET /api/profiles/{id}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownID(w, r)
	if !ok {
		return
	}
	p, err := h.ProfileService.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PATCH /api/profiles/{id}. Only the fields present in the
// body are written; everything else keeps its stored value.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownID(w, r)
	if !ok {
		return
	}
	var upd models.ProfileUpdate
	if err := decode(r, &upd); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.ProfileService.Update(r.Context(), id, upd); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownID returns the {id} path parameter if it belongs to the caller.
func (h *ProfileHandler) ownID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || id != middleware.GetUserIDFromContext(r.Context()) {
		writeMessage(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return id, true
}
