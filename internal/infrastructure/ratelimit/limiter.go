package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/saaskit/backend/internal/infrastructure/cache"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time remaining in the current window, falling
	// back to the full window length when the backend cannot report a
	// TTL. Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// Limiter is a fixed-window rate limiter backed by a cache provider.
// Each key gets a counter whose TTL is anchored to the first request in the
// window; when the counter expires the window resets.
type Limiter struct {
	provider  cache.Provider
	keyPrefix string
	limit     int
	window    time.Duration
}

// New creates a limiter allowing limit requests per window per key.
func New(provider cache.Provider, limit int, window time.Duration) *Limiter {
	return &Limiter{
		provider:  provider,
		keyPrefix: "ratelimit:",
		limit:     limit,
		window:    window,
	}
}

// Allow counts a request against the key and reports whether it fits in the
// current window. The count is consumed even when the request is rejected.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, err := l.provider.Increment(ctx, l.keyPrefix+key, 1, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment: %w", err)
	}

	result := Result{
		Limit:     l.limit,
		Allowed:   count <= int64(l.limit),
		Remaining: l.limit - int(count),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		// Prefer the counter's remaining TTL so Retry-After does not
		// over-report near the end of the window.
		result.RetryAfter = l.window
		if remaining, err := l.provider.TTL(ctx, l.keyPrefix+key); err == nil && remaining > 0 {
			result.RetryAfter = remaining
		}
	}

	return result, nil
}

// Reset clears the counter for the key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.provider.Delete(ctx, l.keyPrefix+key)
}

// Limit returns the configured per-window request limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
