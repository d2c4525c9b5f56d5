package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

// GormSubscriptionRepository implements billing.SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Upsert inserts the mirror row or replaces the existing one keyed by
// the provider's subscription ID. Webhook deliveries can arrive out of
// order across restarts, so the row always reflects the latest write.
func (r *GormSubscriptionRepository) Upsert(ctx context.Context, sub *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "stripe_customer_id", "status", "plan_id", "price_id",
				"currency", "current_period_start", "current_period_end",
				"cancel_at_period_end", "canceled_at", "last_invoice_id",
				"last_invoice_amount", "last_invoice_status", "last_invoice_at",
				"updated_at",
			}),
		}).
		Create(model).Error
}

// Update updates an existing subscription row
func (r *GormSubscriptionRepository) Update(ctx context.Context, sub *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a subscription by its local ID
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeSubscriptionID finds a subscription by the provider's ID
func (r *GormSubscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	if subscriptionID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeCustomerID lists subscriptions for a billing customer
func (r *GormSubscriptionRepository) FindByStripeCustomerID(ctx context.Context, customerID string) ([]*billing.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSubscriptions(rows), nil
}

// ListByUser lists all subscriptions owned by a user
func (r *GormSubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSubscriptions(rows), nil
}

// FindEntitledByUser returns the user's active or trialing subscription.
// Returns shared.ErrNotFound when the user has no entitling subscription.
func (r *GormSubscriptionRepository) FindEntitledByUser(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []billing.SubscriptionStatus{
			billing.SubscriptionStatusActive,
			billing.SubscriptionStatusTrialing,
		}).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func toDomainSubscriptions(rows []models.SubscriptionModel) []*billing.Subscription {
	subs := make([]*billing.Subscription, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].ToDomain())
	}
	return subs
}
