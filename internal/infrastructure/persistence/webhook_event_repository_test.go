package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/domain/webhook"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

func setupWebhookEventTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.WebhookEventModel{})
	require.NoError(t, err)

	return db
}

func TestGormEventRecordRepository_CreateAndFind(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormEventRecordRepository(db)
	ctx := context.Background()

	record := webhook.NewEventRecord("stripe", "evt_123", "invoice.paid", []byte(`{"id":"evt_123"}`))
	require.NoError(t, repo.Create(ctx, record))

	t.Run("finds by provider and event ID", func(t *testing.T) {
		found, err := repo.FindByEventID(ctx, "stripe", "evt_123")
		require.NoError(t, err)
		assert.Equal(t, "invoice.paid", found.EventType)
		assert.False(t, found.Processed)
		assert.JSONEq(t, `{"id":"evt_123"}`, string(found.Payload))
	})

	t.Run("same event ID under another provider is distinct", func(t *testing.T) {
		_, err := repo.FindByEventID(ctx, "paddle", "evt_123")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormEventRecordRepository_ProcessingLifecycle(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormEventRecordRepository(db)
	ctx := context.Background()

	record := webhook.NewEventRecord("stripe", "evt_lifecycle", "customer.subscription.updated", []byte(`{}`))
	require.NoError(t, repo.Create(ctx, record))

	record.MarkFailed(errors.New("handler exploded"))
	require.NoError(t, repo.Update(ctx, record))

	found, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, found.Processed)
	assert.Equal(t, "handler exploded", found.Error)

	found.MarkProcessed(time.Now())
	require.NoError(t, repo.Update(ctx, found))

	done, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, done.Processed)
	assert.NotNil(t, done.ProcessedAt)
	assert.Empty(t, done.Error)
}

func TestGormEventRecordRepository_ListUnprocessed(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormEventRecordRepository(db)
	ctx := context.Background()

	older := webhook.NewEventRecord("stripe", "evt_old", "invoice.paid", []byte(`{}`))
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))

	newer := webhook.NewEventRecord("stripe", "evt_new", "invoice.paid", []byte(`{}`))
	require.NoError(t, repo.Create(ctx, newer))

	handled := webhook.NewEventRecord("stripe", "evt_done", "invoice.paid", []byte(`{}`))
	handled.MarkProcessed(time.Now())
	require.NoError(t, repo.Create(ctx, handled))

	pending, err := repo.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "evt_old", pending[0].EventID)
	assert.Equal(t, "evt_new", pending[1].EventID)

	limited, err := repo.ListUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "evt_old", limited[0].EventID)
}
