package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

const tokenIssuer = "beitak"

// Claims are the JWT claims carried by every access token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RevocationList remembers signed-out token IDs until their natural expiry.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	revoked    RevocationList
	now        func() time.Time
}

// NewTokenService creates a TokenService signing with secret. Tokens live for ttl.
func NewTokenService(secret string, ttl time.Duration, revoked RevocationList) *TokenService {
	return &TokenService{
		signingKey: []byte(secret),
		ttl:        ttl,
		revoked:    revoked,
		now:        time.Now,
	}
}

// Issue signs a fresh token for userID.
func (s *TokenService) Issue(userID string) (models.AuthToken, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return models.AuthToken{}, fmt.Errorf("sign token: %w", err)
	}
	return models.AuthToken{AccessToken: signed, UserID: userID, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Verify parses tokenString and rejects it when it is malformed, expired,
// signed with another key or revoked. Every rejection wraps apperr.ErrUnauthorized.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token has expired: %w", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims: %w", apperr.ErrUnauthorized)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token revoked: %w", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// Revoke blocks the token described by claims for the rest of its lifetime.
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoked.RevokeToken(ctx, claims.ID, ttl)
}
