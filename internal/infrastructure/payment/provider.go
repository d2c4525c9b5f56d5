package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the status of a provider-side subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsActive returns true if the subscription grants access
func (s SubscriptionStatus) IsActive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// CreateCustomerInput contains input for creating a provider customer
type CreateCustomerInput struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer is a provider-side customer record
type Customer struct {
	CustomerID string
	Email      string
	Name       string
	CreatedAt  time.Time
}

// Subscription is a provider-side subscription snapshot
type Subscription struct {
	SubscriptionID     string
	CustomerID         string
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	LatestInvoiceID    string
}

// CancelSubscriptionInput contains input for canceling a subscription
type CancelSubscriptionInput struct {
	SubscriptionID    string
	CancelAtPeriodEnd bool
	Reason            string
}

// Provider is the payment gateway contract. Concrete adapters wrap a single
// gateway SDK; the factory picks one from configuration.
type Provider interface {
	// Name returns the provider identifier used in webhook routes and config.
	Name() string
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error)
	CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*Subscription, error)
}
