package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

func TestFactory_Create(t *testing.T) {
	t.Run("memory provider", func(t *testing.T) {
		cfg := &config.Config{Cache: config.CacheConfig{Provider: "memory"}}
		factory := NewFactory(cfg)

		provider, err := factory.Create()
		require.NoError(t, err)
		defer provider.Close()

		assert.IsType(t, &MemoryProvider{}, provider)
	})

	t.Run("upstash provider", func(t *testing.T) {
		cfg := &config.Config{
			Cache:   config.CacheConfig{Provider: "upstash"},
			Upstash: config.UpstashConfig{URL: "https://example.upstash.io", Token: "tok"},
		}
		factory := NewFactory(cfg)

		provider, err := factory.Create()
		require.NoError(t, err)
		defer provider.Close()

		assert.IsType(t, &UpstashProvider{}, provider)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		cfg := &config.Config{
			Cache: config.CacheConfig{Provider: "redis"},
			Redis: config.RedisConfig{Host: "127.0.0.1", Port: 1},
		}
		factory := NewFactory(cfg)

		provider, err := factory.Create()
		require.NoError(t, err)
		defer provider.Close()

		assert.IsType(t, &MemoryProvider{}, provider)
	})

	t.Run("unreachable redis errors when fallback disabled", func(t *testing.T) {
		cfg := &config.Config{
			Cache: config.CacheConfig{Provider: "redis"},
			Redis: config.RedisConfig{Host: "127.0.0.1", Port: 1},
		}
		factory := NewFactory(cfg, WithMemoryFallback(false))

		_, err := factory.Create()
		assert.Error(t, err)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		cfg := &config.Config{Cache: config.CacheConfig{Provider: "memcached"}}
		factory := NewFactory(cfg)

		_, err := factory.Create()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown cache provider")
	})
}
