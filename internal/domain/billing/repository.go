package billing

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionRepository persists subscription mirror rows.
type SubscriptionRepository interface {
	// Upsert inserts or replaces the row keyed by StripeSubscriptionID.
	Upsert(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) ([]*Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	// FindEntitledByUser returns the user's active or trialing subscription,
	// or shared.ErrNotFound when none exists.
	FindEntitledByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}
