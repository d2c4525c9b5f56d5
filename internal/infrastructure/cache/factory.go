package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

// Factory creates cache providers based on configuration
type Factory struct {
	cacheConfig   config.CacheConfig
	redisConfig   config.RedisConfig
	upstashConfig config.UpstashConfig
	logger        *zap.Logger
	allowFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithMemoryFallback controls whether to fall back to the in-memory provider
// when the configured backend is unavailable. Default is true.
func WithMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowFallback = allow
	}
}

// NewFactory creates a new cache provider factory
func NewFactory(cfg *config.Config, opts ...FactoryOption) *Factory {
	f := &Factory{
		cacheConfig:   cfg.Cache,
		redisConfig:   cfg.Redis,
		upstashConfig: cfg.Upstash,
		logger:        zap.NewNop(),
		allowFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create builds the provider selected by cache.provider.
// When the backend cannot be reached and fallback is allowed, an in-memory
// provider is returned instead so the process can still start.
// WARNING: the in-memory provider does not share state across instances,
// which can lead to duplicate webhook processing in distributed deployments.
func (f *Factory) Create() (Provider, error) {
	switch f.cacheConfig.Provider {
	case "memory":
		f.logger.Info("using in-memory cache provider")
		return NewMemoryProvider(), nil

	case "redis":
		provider, err := NewRedisProvider(f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis cache provider",
				zap.String("addr", f.redisConfig.Addr()))
			return provider, nil
		}
		if !f.allowFallback {
			return nil, fmt.Errorf("redis cache required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory cache provider",
			zap.Error(err))
		return NewMemoryProvider(), nil

	case "upstash":
		f.logger.Info("using Upstash cache provider",
			zap.String("url", f.upstashConfig.URL))
		return NewUpstashProvider(f.upstashConfig), nil

	default:
		return nil, fmt.Errorf("unknown cache provider %q", f.cacheConfig.Provider)
	}
}
