//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/beitak/beitak/internal/apperr"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	addr, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRevocationList(t *testing.T) {
	client := startRedis(t)
	l := NewRedisRevocationList(client)
	ctx := context.Background()

	revoked, err := l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, l.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, revokedTokenKeyPrefix+"jti-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestTokenService_SignOutAcrossInstances(t *testing.T) {
	client := startRedis(t)
	a := NewTokenService("secret", time.Hour, NewRedisRevocationList(client))
	b := NewTokenService("secret", time.Hour, NewRedisRevocationList(client))
	ctx := context.Background()

	tok, err := a.Issue("u-1")
	require.NoError(t, err)
	claims, err := b.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)

	require.NoError(t, a.Revoke(ctx, claims))
	_, err = b.Verify(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
