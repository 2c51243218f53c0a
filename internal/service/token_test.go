package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beitak/beitak/internal/apperr"
)

type failingRevocations struct{}

func (failingRevocations) RevokeToken(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, NewMemoryRevocationList())

	tok, err := svc.Issue("u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", tok.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 2*time.Second)

	claims, err := svc.Verify(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, NewMemoryRevocationList())
	other := NewTokenService("other-secret", time.Hour, NewMemoryRevocationList())
	foreign, err := other.Issue("u-1")
	require.NoError(t, err)

	expiredSvc := NewTokenService("secret", time.Hour, NewMemoryRevocationList())
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.Issue("u-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":   "not.a.token",
		"wrong key": foreign.AccessToken,
		"expired":   expired.AccessToken,
		"alg none":  unsigned,
		"empty":     "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), token)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestTokenService_RevocationLookupFailure(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, failingRevocations{})
	tok, err := svc.Issue("u-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), tok.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestMemoryRevocationList_Expires(t *testing.T) {
	l := NewMemoryRevocationList()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err := l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, _ = l.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)
}
