// Package http provides the HTTP handlers and routing of the Beitak API:
// authentication flows and profile reads and partial updates.
package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/middleware"
	"github.com/beitak/beitak/internal/models"
	"github.com/beitak/beitak/internal/service"
)

// AuthService defines the authentication operations required by the HTTP handlers.
type AuthService interface {
	SendMagicLink(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (models.AuthToken, error)
	SignUp(ctx context.Context, fullName, email, password string) (models.AuthToken, error)
	SignIn(ctx context.Context, email, password string) (models.AuthToken, error)
	SignInWithIDToken(ctx context.Context, provider, idToken string) (models.AuthToken, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, email, code, newPassword string) error
	SignOut(ctx context.Context, claims *service.Claims) error
}

// AuthHandler handles HTTP requests for the sign-in, sign-up and reset flows.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// EmailRequest is the payload of the magic-link and reset requests.
type EmailRequest struct {
	Email string `json:"email"`
}

// VerifyRequest redeems a magic-link code.
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// SignUpRequest registers a password account.
type SignUpRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest authenticates with a password.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthRequest exchanges a provider ID token for a session.
type OAuthRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
}

// ConfirmResetRequest sets a new password with a reset code.
type ConfirmResetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// SessionResponse describes the caller's current session.
type SessionResponse struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SendMagicLink handles POST /api/auth/otp.
func (h *AuthHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.AuthService.SendMagicLink(r.Context(), req.Email); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// VerifyCode handles POST /api/auth/verify and returns the issued token.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decode(r, &req); err != nil || req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	tok, err := h.AuthService.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// OAuth handles POST /api/auth/oauth and returns the issued token.
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := decode(r, &req); err != nil || req.Provider == "" {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	tok, err := h.AuthService.SignInWithIDToken(r.Context(), req.Provider, req.IDToken)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// SignUp handles POST /api/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	tok, err := h.AuthService.SignUp(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

// SignIn handles POST /api/auth/login.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	tok, err := h.AuthService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// ResetPassword handles POST /api/auth/reset.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.AuthService.ResetPassword(r.Context(), req.Email); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ConfirmReset handles POST /api/auth/reset/confirm.
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if err := decode(r, &req); err != nil || req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.AuthService.ConfirmReset(r.Context(), req.Email, req.Code, req.Password); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session. BearerAuth has already verified the token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}
	resp := SessionResponse{UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SignOut handles POST /api/auth/logout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}
	if err := h.AuthService.SignOut(r.Context(), claims); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
