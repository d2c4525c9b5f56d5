package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

func TestStubObjectStorage(t *testing.T) {
	ctx := context.Background()
	stub := NewStubObjectStorage()

	t.Run("download URL embeds key and expiry", func(t *testing.T) {
		url, expiresAt, err := stub.GenerateDownloadURL(ctx, "releases/cli-v1.2.3.tar.gz", time.Hour)
		require.NoError(t, err)
		assert.Contains(t, url, "releases/cli-v1.2.3.tar.gz")
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		_, _, err := stub.GenerateDownloadURL(ctx, "", time.Hour)
		assert.Error(t, err)

		_, _, err = stub.GenerateUploadURL(ctx, "", "application/octet-stream", time.Hour)
		assert.Error(t, err)
	})

	t.Run("upload round-trips", func(t *testing.T) {
		require.NoError(t, stub.Upload(ctx, "k", []byte("payload"), "text/plain"))

		data, ok := stub.Get("k")
		require.True(t, ok)
		assert.Equal(t, []byte("payload"), data)

		require.NoError(t, stub.DeleteObject(ctx, "k"))
		_, ok = stub.Get("k")
		assert.False(t, ok)
	})
}

func TestNewObjectStorage(t *testing.T) {
	t.Run("stub provider", func(t *testing.T) {
		store, err := NewObjectStorage(&config.StorageConfig{Provider: "stub"}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &StubObjectStorage{}, store)
	})

	t.Run("s3 requires credentials", func(t *testing.T) {
		_, err := NewObjectStorage(&config.StorageConfig{Provider: "s3", Bucket: "b"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := NewObjectStorage(&config.StorageConfig{Provider: "gcs"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage provider")
	})
}
