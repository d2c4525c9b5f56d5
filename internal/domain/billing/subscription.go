package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/saaskit/backend/internal/domain/shared"
)

// SubscriptionStatus mirrors the lifecycle states reported by the payment
// provider.
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// Subscription is the local mirror of a provider-side subscription.
// Rows are written exclusively by the webhook pipeline; the read surface
// never mutates them.
type Subscription struct {
	shared.UserOwnedEntity
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               SubscriptionStatus
	PlanID               string
	PriceID              string
	Currency             string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	LastInvoiceID        string
	LastInvoiceAmount    decimal.Decimal
	LastInvoiceStatus    string
	LastInvoiceAt        *time.Time
}

// IsEntitled reports whether the subscription grants access to gated
// resources. Trialing counts as entitled.
func (s *Subscription) IsEntitled() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// ApplyStatus transitions the subscription to the given provider status.
func (s *Subscription) ApplyStatus(status SubscriptionStatus) {
	s.Status = status
	if status == SubscriptionStatusCanceled && s.CanceledAt == nil {
		now := time.Now()
		s.CanceledAt = &now
	}
	s.Touch()
}

// RecordInvoice stores the latest invoice outcome on the mirror row.
func (s *Subscription) RecordInvoice(invoiceID string, amount decimal.Decimal, status string, at time.Time) {
	s.LastInvoiceID = invoiceID
	s.LastInvoiceAmount = amount
	s.LastInvoiceStatus = status
	s.LastInvoiceAt = &at
	s.Touch()
}
