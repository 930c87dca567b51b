package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAllow_FixedWindow(t *testing.T) {
	mr, client := newRedis(t)
	l := New(client, "test:rl:", 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "status", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
	}

	d, err := l.Allow(ctx, "status", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfter)

	other, err := l.Allow(ctx, "status", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	assert.True(t, mr.Exists("test:rl:status:10.0.0.1"))

	mr.FastForward(61 * time.Second)
	d, err = l.Allow(ctx, "status", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestAllow_DisabledLimiter(t *testing.T) {
	var l *Limiter
	d, err := l.Allow(context.Background(), "status", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_RedisDownAllows(t *testing.T) {
	mr, client := newRedis(t)
	l := New(client, "", 1, time.Minute)
	mr.Close()

	d, err := l.Allow(context.Background(), "status", "10.0.0.1")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}
