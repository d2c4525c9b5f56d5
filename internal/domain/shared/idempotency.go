package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed webhook event IDs to suppress duplicates.
// Implementations must make MarkProcessed an atomic check-and-set: two
// concurrent calls with the same event ID must not both return true.
type IdempotencyStore interface {
	// MarkProcessed marks an event as seen with a TTL.
	// Returns true if the event was newly marked, false if it was a duplicate.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether an event has already been seen.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// IdempotencyConfig holds configuration for duplicate suppression.
type IdempotencyConfig struct {
	// TTL is how long a processed event ID is remembered.
	// After this duration, the same event ID is treated as new again.
	TTL time.Duration

	// Enabled toggles idempotency checking.
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
