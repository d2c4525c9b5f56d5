package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaskit/backend/internal/domain/registry"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

// GormDownloadLogRepository implements registry.DownloadLogRepository using GORM
type GormDownloadLogRepository struct {
	db *gorm.DB
}

// NewGormDownloadLogRepository creates a new GormDownloadLogRepository
func NewGormDownloadLogRepository(db *gorm.DB) *GormDownloadLogRepository {
	return &GormDownloadLogRepository{db: db}
}

// Create appends a download audit row
func (r *GormDownloadLogRepository) Create(ctx context.Context, log *registry.DownloadLog) error {
	model := models.DownloadLogModelFromDomain(log)
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByUser returns the most recent download audit rows for a user
func (r *GormDownloadLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*registry.DownloadLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.DownloadLogModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]*registry.DownloadLog, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].ToDomain())
	}
	return logs, nil
}
