package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

// GormTwoFactorLogRepository implements identity.TwoFactorLogRepository using GORM
type GormTwoFactorLogRepository struct {
	db *gorm.DB
}

// NewGormTwoFactorLogRepository creates a new GormTwoFactorLogRepository
func NewGormTwoFactorLogRepository(db *gorm.DB) *GormTwoFactorLogRepository {
	return &GormTwoFactorLogRepository{db: db}
}

// Create appends an audit entry
func (r *GormTwoFactorLogRepository) Create(ctx context.Context, log *identity.TwoFactorLog) error {
	model := models.TwoFactorLogModelFromDomain(log)
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByProfile returns the most recent audit entries for a profile
func (r *GormTwoFactorLogRepository) ListByProfile(ctx context.Context, profileID uuid.UUID, limit int) ([]*identity.TwoFactorLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.TwoFactorLogModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", profileID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]*identity.TwoFactorLog, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].ToDomain())
	}
	return logs, nil
}
