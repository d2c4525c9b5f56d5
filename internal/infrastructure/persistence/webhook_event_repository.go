package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/domain/webhook"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

// GormEventRecordRepository implements webhook.EventRecordRepository using GORM
type GormEventRecordRepository struct {
	db *gorm.DB
}

// NewGormEventRecordRepository creates a new GormEventRecordRepository
func NewGormEventRecordRepository(db *gorm.DB) *GormEventRecordRepository {
	return &GormEventRecordRepository{db: db}
}

// Create writes the log row for an accepted delivery
func (r *GormEventRecordRepository) Create(ctx context.Context, record *webhook.EventRecord) error {
	model := models.WebhookEventModelFromDomain(record)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update updates a log row after processing
func (r *GormEventRecordRepository) Update(ctx context.Context, record *webhook.EventRecord) error {
	model := models.WebhookEventModelFromDomain(record)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a log row by its local ID
func (r *GormEventRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*webhook.EventRecord, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEventID finds a log row by provider and provider-assigned event ID
func (r *GormEventRecordRepository) FindByEventID(ctx context.Context, provider, eventID string) (*webhook.EventRecord, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListUnprocessed returns the oldest rows that have not been handled yet,
// including rows whose handler failed. Used for replay.
func (r *GormEventRecordRepository) ListUnprocessed(ctx context.Context, limit int) ([]*webhook.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*webhook.EventRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToDomain())
	}
	return records, nil
}
