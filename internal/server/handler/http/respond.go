package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps a service error onto a status code. Validation errors keep
// their field so that clients can attach the message to the right input.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidCode):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidIDToken):
		writeMessage(w, http.StatusUnauthorized, service.ErrInvalidIDToken.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, apperr.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrConflict):
		writeMessage(w, http.StatusConflict, "already exists")
	case errors.Is(err, apperr.ErrIncomplete):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
