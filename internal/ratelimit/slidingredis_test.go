package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingAllowWindow(t *testing.T) {
	mr, client := newRedis(t)
	window := 2 * time.Second
	limiter := Sliding{Client: client, Prefix: "test:", Window: window, Max: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d", i)
		require.Equal(t, 2-(i+1), decision.Remaining)
	}

	decision, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Zero(t, decision.Remaining)

	mr.FastForward(window)

	decision, err = limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestSlidingDisabledWithoutClient(t *testing.T) {
	decision, err := Sliding{Window: time.Second, Max: 1}.Allow(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestFixedInMemory(t *testing.T) {
	limiter, err := NewFixed(nil, "api", "2-M")
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "ip:1")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, 2, decision.Limit)
	}
	decision, err := limiter.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	other, err := limiter.Allow(ctx, "ip:2")
	require.NoError(t, err)
	require.True(t, other.Allowed)
}

func TestFixedRejectsBadRate(t *testing.T) {
	_, err := NewFixed(nil, "api", "lots")
	require.Error(t, err)
}
