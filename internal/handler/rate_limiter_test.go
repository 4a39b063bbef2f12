package handler

import (
	"context"
	"testing"
	"time"

	"link-shortener/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSimpleRateLimiter(1, 3)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "one token refilled")
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		ok, _ = l.Allow(ctx, "10.0.0.1")
		assert.True(t, ok, "refill is capped at burst")
	}
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
}

func TestSimpleRateLimiter_PrunesIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSimpleRateLimiter(1, 3)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := l.Allow(ctx, ip)
		require.NoError(t, err)
	}
	assert.Len(t, l.buckets, 3)

	now = now.Add(30 * time.Second)
	_, _ = l.Allow(ctx, "10.0.0.1")
	assert.Len(t, l.buckets, 3, "no prune before the idle period")

	now = now.Add(time.Minute)
	ok, _ := l.Allow(ctx, "10.0.0.4")
	assert.True(t, ok)
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "10.0.0.4")
}

func TestRedisRateLimiter(t *testing.T) {
	client := testutils.SetupRedis(t)

	now := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	l := NewRedisRateLimiter(client, 2, 10*time.Second)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(10 * time.Second)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "new window")

	ttl, err := client.TTL(ctx, "ratelimit:10.0.0.1:1767225610").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
