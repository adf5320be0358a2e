package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "bot:a", sample{Name: "a", Count: 3}, 0))

	var got sample
	require.NoError(t, mc.Get(ctx, "bot:a", &got))
	assert.Equal(t, sample{Name: "a", Count: 3}, got)

	var raw string
	require.NoError(t, mc.Get(ctx, "bot:a", &raw))
	assert.JSONEq(t, `{"name":"a","count":3}`, raw)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var got sample
	assert.ErrorIs(t, mc.Get(ctx, "nope", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
}

func TestMemoryCache_ZeroExpirationPersists(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", 0))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_SetNXAndLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.SetNX(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.SetNX(ctx, "k", "second", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	var v string
	require.NoError(t, mc.Get(ctx, "k", &v))
	assert.Equal(t, "first", v)

	locked, err := mc.TryLock(ctx, "lock:k", "owner-1", time.Second)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = mc.TryLock(ctx, "lock:k", "owner-2", time.Second)
	require.NoError(t, err)
	assert.False(t, locked)

	released, err := mc.Unlock(ctx, "lock:k", "owner-2")
	require.NoError(t, err)
	assert.False(t, released, "only the holder may release")
	released, err = mc.Unlock(ctx, "lock:k", "owner-1")
	require.NoError(t, err)
	assert.True(t, released)

	locked, err = mc.TryLock(ctx, "lock:k", "owner-2", time.Second)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestMemoryCache_UnlockAfterLeaseExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	locked, err := mc.TryLock(ctx, "lock:k", "stale", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, locked)
	time.Sleep(20 * time.Millisecond)

	locked, err = mc.TryLock(ctx, "lock:k", "fresh", time.Second)
	require.NoError(t, err)
	require.True(t, locked)

	released, err := mc.Unlock(ctx, "lock:k", "stale")
	require.NoError(t, err)
	assert.False(t, released)
	ok, err := mc.Exists(ctx, "lock:k")
	require.NoError(t, err)
	assert.True(t, ok, "fresh holder keeps the key")
}

func TestMemoryCache_KeysMatchesPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"bot:b", "bot:a", "lock:bot:a", "other"} {
		require.NoError(t, mc.Set(ctx, k, "x", 0))
	}

	keys, err := mc.Keys(ctx, BuildPattern("bot"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bot:a", "bot:b"}, keys)
}

func TestMemoryCache_EvictsWhenBounded(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	ok, _ := mc.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "c")
	assert.True(t, ok)
}
