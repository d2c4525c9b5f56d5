package cache

import (
	"context"
	"time"

	"github.com/saaskit/backend/internal/domain/shared"
)

// IdempotencyStore implements shared.IdempotencyStore on top of a cache
// Provider. MarkProcessed delegates to SetNX, so the duplicate check and the
// claim are a single atomic step regardless of backend.
type IdempotencyStore struct {
	provider  Provider
	keyPrefix string
}

// NewIdempotencyStore creates a store with the given key prefix.
// An empty prefix defaults to "webhook:event:".
func NewIdempotencyStore(provider Provider, keyPrefix string) *IdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:event:"
	}
	return &IdempotencyStore{
		provider:  provider,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed claims the event ID with a TTL.
// Returns true if this call claimed it, false if it was already claimed.
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return s.provider.SetNX(ctx, s.keyPrefix+eventID, "1", ttl)
}

// IsProcessed checks whether the event ID has already been claimed.
func (s *IdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.provider.Exists(ctx, s.keyPrefix+eventID)
}

// Close releases the underlying provider.
func (s *IdempotencyStore) Close() error {
	return s.provider.Close()
}

var _ shared.IdempotencyStore = (*IdempotencyStore)(nil)

// PassthroughIdempotencyStore treats every event as new. Used when
// duplicate suppression is disabled by configuration.
type PassthroughIdempotencyStore struct{}

// MarkProcessed always claims the event.
func (PassthroughIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return true, nil
}

// IsProcessed always reports the event as unseen.
func (PassthroughIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

// Close is a no-op.
func (PassthroughIdempotencyStore) Close() error { return nil }

var _ shared.IdempotencyStore = PassthroughIdempotencyStore{}
