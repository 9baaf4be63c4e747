package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "bookings:id:b-1", []byte("payload"), time.Minute))

		val, ok, err := cache.Get(ctx, "bookings:id:b-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("payload"), val)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "bookings:id:missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "bookings:id:b-2", []byte("x"), -time.Second))
		// Negative ttl falls back to the default, so force a stale entry directly.
		cache.mu.Lock()
		cache.entries["bookings:id:b-2"] = memoryEntry{value: []byte("x"), expiresAt: time.Now().Add(-time.Second)}
		cache.mu.Unlock()

		_, ok, err := cache.Get(ctx, "bookings:id:b-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidatePattern", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "bookings:id:b-3", []byte("a"), time.Minute))
		require.NoError(t, cache.Set(ctx, "bookings:list:p1", []byte("b"), time.Minute))
		require.NoError(t, cache.Set(ctx, "cars:id:c-1", []byte("c"), time.Minute))

		require.NoError(t, cache.InvalidatePattern(ctx, "bookings:*"))

		_, ok, _ := cache.Get(ctx, "bookings:id:b-3")
		assert.False(t, ok)
		_, ok, _ = cache.Get(ctx, "cars:id:c-1")
		assert.True(t, ok)
	})
}
