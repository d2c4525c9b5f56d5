package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

// RedisProvider implements Provider using a Redis server.
// This is suitable for distributed deployments where multiple instances
// need to share cache state.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider creates a provider connected per the given config.
// The connection is verified with a ping before returning.
func NewRedisProvider(cfg config.RedisConfig) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{client: client}, nil
}

// NewRedisProviderWithClient wraps an existing client. Useful for testing or
// when sharing a client across components.
func NewRedisProviderWithClient(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) Get(ctx context.Context, key string) (string, error) {
	val, err := p.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (p *RedisProvider) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := p.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// SetNX relies on Redis SET NX for a single atomic check-and-write.
func (p *RedisProvider) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := p.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (p *RedisProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (p *RedisProvider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Increment uses INCRBY and sets the TTL only when the increment created the
// key, so a counter window is anchored to its first increment.
func (p *RedisProvider) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	n, err := p.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby: %w", err)
	}
	if n == delta && ttl > 0 {
		if err := p.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("redis expire: %w", err)
		}
	}
	return n, nil
}

func (p *RedisProvider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := p.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

// TTL uses PTTL for millisecond precision. Redis reports missing keys
// and keys without expiration as negative durations; both map to zero.
func (p *RedisProvider) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := p.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (p *RedisProvider) GetClient() *redis.Client {
	return p.client
}

var _ Provider = (*RedisProvider)(nil)
