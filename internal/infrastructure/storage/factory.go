package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

// NewObjectStorage builds the backend selected by storage.provider.
func NewObjectStorage(cfg *config.StorageConfig, logger *zap.Logger) (ObjectStorage, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3ObjectStorage(cfg, WithLogger(logger))
	case "stub":
		logger.Warn("using stub object storage; artifacts are not persisted")
		return NewStubObjectStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
