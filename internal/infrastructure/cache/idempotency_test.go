package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim succeeds, second is rejected", func(t *testing.T) {
		store := NewIdempotencyStore(NewMemoryProvider(), "")
		defer store.Close()

		ok, err := store.MarkProcessed(ctx, "evt_123", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "evt_123", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different event IDs are independent", func(t *testing.T) {
		store := NewIdempotencyStore(NewMemoryProvider(), "")
		defer store.Close()

		ok, err := store.MarkProcessed(ctx, "evt_a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "evt_b", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("claim can be repeated after TTL expires", func(t *testing.T) {
		store := NewIdempotencyStore(NewMemoryProvider(), "")
		defer store.Close()

		ok, err := store.MarkProcessed(ctx, "evt_ttl", 20*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(40 * time.Millisecond)

		ok, err = store.MarkProcessed(ctx, "evt_ttl", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(NewMemoryProvider(), "")
	defer store.Close()

	processed, err := store.IsProcessed(ctx, "evt_x")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "evt_x", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "evt_x")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestIdempotencyStore_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	store := NewIdempotencyStore(provider, "custom:prefix:")
	defer provider.Close()

	_, err := store.MarkProcessed(ctx, "evt_1", time.Minute)
	require.NoError(t, err)

	exists, err := provider.Exists(ctx, "custom:prefix:evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPassthroughIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := PassthroughIdempotencyStore{}

	for i := 0; i < 3; i++ {
		claimed, err := store.MarkProcessed(ctx, "evt_1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed, "every delivery is treated as new")
	}

	processed, err := store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.NoError(t, store.Close())
}
