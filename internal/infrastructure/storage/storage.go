// Package storage provides object storage implementations for artifact
// delivery.
package storage

import (
	"context"
	"time"
)

// ObjectStorage abstracts the blob store that holds downloadable artifacts.
// Implementations must be safe for concurrent use.
type ObjectStorage interface {
	// GenerateDownloadURL returns a presigned GET URL and its expiry.
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	// GenerateUploadURL returns a presigned PUT URL and its expiry.
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)
	// Upload writes data directly to storage (for internal use).
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	// DeleteObject removes an object.
	DeleteObject(ctx context.Context, storageKey string) error
	// ObjectExists reports whether the object is present.
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}
