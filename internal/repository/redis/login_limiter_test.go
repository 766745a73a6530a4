package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLoginLimiter(rdb, LimiterConfig{MaxAttempts: 3, Window: time.Minute}), mr
}

func TestLoginLimiter_BlocksAfterMaxFailures(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "anna@example.com")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i)
		require.NoError(t, l.Fail(ctx, "anna@example.com"))
	}

	ok, err := l.Allow(ctx, "ANNA@example.com ")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "other@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Fail(ctx, "a@example.com"))
	}
	assert.Equal(t, time.Minute, mr.TTL("campauth:login:a@example.com"))

	mr.FastForward(time.Minute + time.Second)

	ok, err := l.Allow(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiter_Reset(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Fail(ctx, "a@example.com"))
	}
	require.NoError(t, l.Reset(ctx, "a@example.com"))
	assert.False(t, mr.Exists("campauth:login:a@example.com"))

	ok, err := l.Allow(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiter_Unavailable(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewLoginLimiter(rdb, LimiterConfig{})

	ok, err := l.Allow(context.Background(), "a@example.com")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, ok)
}

func TestLoginLimiter_FailRestoresMissingTTL(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("campauth:login:a@example.com", "7"))
	assert.Zero(t, mr.TTL("campauth:login:a@example.com"))

	require.NoError(t, l.Fail(ctx, "a@example.com"))
	got, err := mr.Get("campauth:login:a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "8", got)
	assert.Equal(t, time.Minute, mr.TTL("campauth:login:a@example.com"))

	mr.FastForward(time.Minute + time.Second)
	ok, err := l.Allow(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiter_FailKeepsWindowStart(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "a@example.com"))
	mr.FastForward(40 * time.Second)
	require.NoError(t, l.Fail(ctx, "a@example.com"))
	assert.Equal(t, 20*time.Second, mr.TTL("campauth:login:a@example.com"))
}
