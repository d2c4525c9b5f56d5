package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Provider is the cache backend contract shared by the in-memory, Redis and
// Upstash implementations. Values are opaque strings; callers serialize
// structured payloads themselves.
//
// SetNX is the atomic check-and-set primitive: it stores the value only when
// the key is absent and reports whether the write happened. Implementations
// must make the existence check and the write a single atomic step.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment adds delta to the integer stored at key and returns the new
	// value. A missing key counts from zero; ttl is applied only when the
	// key is created by this call.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time to live of the key, or zero when the
	// key is missing or has no expiration.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}
