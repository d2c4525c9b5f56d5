package webhook

import (
	"github.com/google/uuid"

	"github.com/saaskit/backend/internal/domain/shared"
)

// Event type constants published on the event bus by webhook handlers.
const (
	EventTypeSubscriptionCreated = "subscription.created"
	EventTypeSubscriptionUpdated = "subscription.updated"
	EventTypeSubscriptionDeleted = "subscription.deleted"

	EventTypePaymentSucceeded      = "payment.succeeded"
	EventTypePaymentFailed         = "payment.failed"
	EventTypePaymentActionRequired = "payment.action_required"

	EventTypeInvoicePaid          = "invoice.paid"
	EventTypeInvoicePaymentFailed = "invoice.payment_failed"
	EventTypeInvoiceUpcoming      = "invoice.upcoming"
)

// Aggregate type constants.
const (
	AggregateTypeSubscription = "Subscription"
	AggregateTypePayment      = "Payment"
	AggregateTypeInvoice      = "Invoice"
)

// EventFactories maps every event type this package publishes to a
// constructor for its concrete type, so buses relaying events between
// instances can decode them back into the type local subscribers expect.
func EventFactories() map[string]func() shared.DomainEvent {
	return map[string]func() shared.DomainEvent{
		EventTypeSubscriptionCreated: func() shared.DomainEvent { return &SubscriptionEvent{} },
		EventTypeSubscriptionUpdated: func() shared.DomainEvent { return &SubscriptionEvent{} },
		EventTypeSubscriptionDeleted: func() shared.DomainEvent { return &SubscriptionEvent{} },

		EventTypePaymentSucceeded:      func() shared.DomainEvent { return &PaymentEvent{} },
		EventTypePaymentFailed:         func() shared.DomainEvent { return &PaymentEvent{} },
		EventTypePaymentActionRequired: func() shared.DomainEvent { return &PaymentEvent{} },

		EventTypeInvoicePaid:          func() shared.DomainEvent { return &InvoiceEvent{} },
		EventTypeInvoicePaymentFailed: func() shared.DomainEvent { return &InvoiceEvent{} },
		EventTypeInvoiceUpcoming:      func() shared.DomainEvent { return &InvoiceEvent{} },
	}
}

// SubscriptionEvent is published when a webhook changes a subscription row.
type SubscriptionEvent struct {
	shared.BaseDomainEvent
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

// NewSubscriptionEvent creates a subscription lifecycle event for a user.
func NewSubscriptionEvent(eventType string, userID, aggID uuid.UUID, subscriptionID, status string) *SubscriptionEvent {
	return &SubscriptionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSubscription, aggID, userID),
		SubscriptionID:  subscriptionID,
		Status:          status,
	}
}

// PaymentEvent is published for payment intent outcomes.
type PaymentEvent struct {
	shared.BaseDomainEvent
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
	FailureMessage  string `json:"failure_message,omitempty"`
}

// NewPaymentEvent creates a payment outcome event for a user.
func NewPaymentEvent(eventType string, userID uuid.UUID, paymentIntentID string) *PaymentEvent {
	return &PaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePayment, userID, userID),
		PaymentIntentID: paymentIntentID,
	}
}

// InvoiceEvent is published for invoice outcomes.
type InvoiceEvent struct {
	shared.BaseDomainEvent
	InvoiceID    string `json:"invoice_id,omitempty"`
	AmountPaid   int64  `json:"amount_paid,omitempty"`
	AmountDue    int64  `json:"amount_due,omitempty"`
	Currency     string `json:"currency,omitempty"`
	AttemptCount int64  `json:"attempt_count,omitempty"`
}

// NewInvoiceEvent creates an invoice outcome event for a user.
func NewInvoiceEvent(eventType string, userID uuid.UUID, invoiceID string) *InvoiceEvent {
	return &InvoiceEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, userID, userID),
		InvoiceID:       invoiceID,
	}
}
