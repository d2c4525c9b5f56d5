package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaskit/backend/internal/infrastructure/cache"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *Limiter {
	t.Helper()
	provider := cache.NewMemoryProvider()
	t.Cleanup(func() { _ = provider.Close() })
	return New(provider, limit, window)
}

func TestLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		limiter := newTestLimiter(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, "client-1")
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 3-(i+1), result.Remaining)
		}

		result, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		assert.Greater(t, result.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, result.RetryAfter, time.Minute)
	})

	t.Run("retry-after tracks the remaining window", func(t *testing.T) {
		limiter := newTestLimiter(t, 1, 200*time.Millisecond)

		_, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)

		time.Sleep(80 * time.Millisecond)

		result, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.False(t, result.Allowed)
		assert.Greater(t, result.RetryAfter, time.Duration(0))
		assert.Less(t, result.RetryAfter, 150*time.Millisecond,
			"rejection near the window end must not report the full window")
	})

	t.Run("keys are counted independently", func(t *testing.T) {
		limiter := newTestLimiter(t, 1, time.Minute)

		result, err := limiter.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = limiter.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		result, err = limiter.Allow(ctx, "client-b")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		limiter := newTestLimiter(t, 1, 30*time.Millisecond)

		result, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.True(t, result.Allowed)

		result, err = limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.False(t, result.Allowed)

		time.Sleep(50 * time.Millisecond)

		result, err = limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	})

	t.Run("rejected requests still consume the window", func(t *testing.T) {
		limiter := newTestLimiter(t, 2, time.Minute)

		for i := 0; i < 5; i++ {
			_, err := limiter.Allow(ctx, "greedy")
			require.NoError(t, err)
		}

		result, err := limiter.Allow(ctx, "greedy")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})
}

func TestLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(t, 1, time.Minute)

	result, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, "client-1"))

	result, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
