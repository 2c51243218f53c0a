// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/service"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// TokenVerifier resolves a bearer token into its claims.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token.
//
// On success the verified claims are stored in the request context, so
// handlers can read the authenticated user ID downstream.
func BearerAuth(verifier TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := verifier.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperr.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				log.Error("token verification failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims. Used by tests and by
// callers that authenticate outside of HTTP.
func WithClaims(ctx context.Context, claims *service.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext returns the claims stored by BearerAuth, or nil.
func GetClaimsFromContext(ctx context.Context) *service.Claims {
	claims, _ := ctx.Value(claimsKey).(*service.Claims)
	return claims
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	if claims := GetClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
