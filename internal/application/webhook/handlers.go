package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
)

// Handler processes one verified webhook event type.
type Handler func(ctx context.Context, event *VerifiedEvent) error

// StripeHandlers contains the typed handlers for Stripe events. Each
// handler mirrors provider state into local rows and publishes a coarser
// domain event on the bus.
//
// A missing profile is not an error: deliveries can arrive for customers
// that were never provisioned locally, and failing would only trigger
// provider retries.
type StripeHandlers struct {
	profiles identity.ProfileRepository
	subs     billing.SubscriptionRepository
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewStripeHandlers creates the Stripe handler set.
func NewStripeHandlers(
	profiles identity.ProfileRepository,
	subs billing.SubscriptionRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *StripeHandlers {
	return &StripeHandlers{
		profiles: profiles,
		subs:     subs,
		eventBus: eventBus,
		logger:   logger,
	}
}

// RegisterAll registers every Stripe handler on the processor.
func (h *StripeHandlers) RegisterAll(p *Processor) {
	p.RegisterHandler("customer.subscription.created", h.HandleSubscriptionCreated)
	p.RegisterHandler("customer.subscription.updated", h.HandleSubscriptionUpdated)
	p.RegisterHandler("customer.subscription.deleted", h.HandleSubscriptionDeleted)

	p.RegisterHandler("payment_intent.succeeded", h.HandlePaymentSucceeded)
	p.RegisterHandler("payment_intent.payment_failed", h.HandlePaymentFailed)
	p.RegisterHandler("payment_intent.requires_action", h.HandlePaymentActionRequired)

	p.RegisterHandler("invoice.paid", h.HandleInvoicePaid)
	p.RegisterHandler("invoice.payment_failed", h.HandleInvoicePaymentFailed)
	p.RegisterHandler("invoice.upcoming", h.HandleInvoiceUpcoming)
}

// HandleSubscriptionCreated mirrors a new provider subscription locally.
func (h *StripeHandlers) HandleSubscriptionCreated(ctx context.Context, event *VerifiedEvent) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.DataObject, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	customerID := stripeCustomerID(sub.Customer)
	if customerID == "" {
		h.logger.Warn("Subscription has no customer ID, skipping",
			zap.String("subscription_id", sub.ID))
		return nil
	}

	profile, err := h.profiles.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("No profile for Stripe customer, skipping",
				zap.String("customer_id", customerID),
				zap.String("subscription_id", sub.ID))
			return nil
		}
		return fmt.Errorf("failed to find profile: %w", err)
	}

	row := &billing.Subscription{
		UserOwnedEntity:      shared.NewUserOwnedEntity(profile.ID),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		Status:               billing.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		Currency:             string(sub.Currency),
	}
	applyStripePeriod(row, &sub)
	applyStripePrice(row, &sub)

	if err := h.subs.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	h.publish(ctx, NewSubscriptionEvent(EventTypeSubscriptionCreated, profile.ID, row.ID, sub.ID, string(sub.Status)))

	h.logger.Info("Subscription created",
		zap.String("user_id", profile.ID.String()),
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))
	return nil
}

// HandleSubscriptionUpdated applies provider-side changes to the local
// row. An update for an unknown subscription is treated as a creation,
// since deliveries can arrive out of order.
func (h *StripeHandlers) HandleSubscriptionUpdated(ctx context.Context, event *VerifiedEvent) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.DataObject, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	existing, err := h.subs.FindByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return h.HandleSubscriptionCreated(ctx, event)
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	existing.ApplyStatus(billing.SubscriptionStatus(sub.Status))
	existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	applyStripePeriod(existing, &sub)
	applyStripePrice(existing, &sub)

	if err := h.subs.Upsert(ctx, existing); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	h.publish(ctx, NewSubscriptionEvent(EventTypeSubscriptionUpdated, existing.UserID, existing.ID, sub.ID, string(sub.Status)))

	h.logger.Info("Subscription updated",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))
	return nil
}

// HandleSubscriptionDeleted marks the local row canceled.
func (h *StripeHandlers) HandleSubscriptionDeleted(ctx context.Context, event *VerifiedEvent) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.DataObject, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	existing, err := h.subs.FindByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("Subscription not found for deletion",
				zap.String("subscription_id", sub.ID))
			return nil
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	existing.ApplyStatus(billing.SubscriptionStatusCanceled)

	if err := h.subs.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	h.publish(ctx, NewSubscriptionEvent(EventTypeSubscriptionDeleted, existing.UserID, existing.ID, sub.ID, string(billing.SubscriptionStatusCanceled)))

	h.logger.Info("Subscription deleted", zap.String("subscription_id", sub.ID))
	return nil
}

// HandlePaymentSucceeded publishes a payment.succeeded event for the user.
func (h *StripeHandlers) HandlePaymentSucceeded(ctx context.Context, event *VerifiedEvent) error {
	intent, profile, err := h.paymentIntentProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	e := NewPaymentEvent(EventTypePaymentSucceeded, profile.ID, intent.ID)
	e.Amount = intent.Amount
	e.Currency = string(intent.Currency)
	h.publish(ctx, e)

	h.logger.Info("Payment succeeded",
		zap.String("user_id", profile.ID.String()),
		zap.String("payment_intent_id", intent.ID))
	return nil
}

// HandlePaymentFailed publishes a payment.failed event with the provider's
// failure message.
func (h *StripeHandlers) HandlePaymentFailed(ctx context.Context, event *VerifiedEvent) error {
	intent, profile, err := h.paymentIntentProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	e := NewPaymentEvent(EventTypePaymentFailed, profile.ID, intent.ID)
	if intent.LastPaymentError != nil {
		e.FailureMessage = intent.LastPaymentError.Msg
	}
	h.publish(ctx, e)

	h.logger.Warn("Payment failed",
		zap.String("user_id", profile.ID.String()),
		zap.String("payment_intent_id", intent.ID))
	return nil
}

// HandlePaymentActionRequired publishes a payment.action_required event
// carrying the client secret needed to complete authentication.
func (h *StripeHandlers) HandlePaymentActionRequired(ctx context.Context, event *VerifiedEvent) error {
	intent, profile, err := h.paymentIntentProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	e := NewPaymentEvent(EventTypePaymentActionRequired, profile.ID, intent.ID)
	e.ClientSecret = intent.ClientSecret
	h.publish(ctx, e)

	h.logger.Info("Payment action required",
		zap.String("user_id", profile.ID.String()),
		zap.String("payment_intent_id", intent.ID))
	return nil
}

// HandleInvoicePaid records the invoice outcome on the subscription row
// and publishes invoice.paid.
func (h *StripeHandlers) HandleInvoicePaid(ctx context.Context, event *VerifiedEvent) error {
	invoice, profile, err := h.invoiceProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	if invoice.Subscription != nil {
		sub, err := h.subs.FindByStripeSubscriptionID(ctx, invoice.Subscription.ID)
		if err == nil {
			amount := decimal.NewFromInt(invoice.AmountPaid).Shift(-2)
			sub.RecordInvoice(invoice.ID, amount, "paid", time.Now())
			if err := h.subs.Update(ctx, sub); err != nil {
				return fmt.Errorf("failed to record invoice on subscription: %w", err)
			}
		} else if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("failed to find subscription: %w", err)
		}
	}

	e := NewInvoiceEvent(EventTypeInvoicePaid, profile.ID, invoice.ID)
	e.AmountPaid = invoice.AmountPaid
	e.Currency = string(invoice.Currency)
	h.publish(ctx, e)

	h.logger.Info("Invoice paid",
		zap.String("user_id", profile.ID.String()),
		zap.String("invoice_id", invoice.ID))
	return nil
}

// HandleInvoicePaymentFailed records the failed invoice on the
// subscription row and publishes invoice.payment_failed.
func (h *StripeHandlers) HandleInvoicePaymentFailed(ctx context.Context, event *VerifiedEvent) error {
	invoice, profile, err := h.invoiceProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	if invoice.Subscription != nil {
		sub, err := h.subs.FindByStripeSubscriptionID(ctx, invoice.Subscription.ID)
		if err == nil {
			amount := decimal.NewFromInt(invoice.AmountDue).Shift(-2)
			sub.RecordInvoice(invoice.ID, amount, "payment_failed", time.Now())
			if err := h.subs.Update(ctx, sub); err != nil {
				return fmt.Errorf("failed to record invoice on subscription: %w", err)
			}
		} else if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("failed to find subscription: %w", err)
		}
	}

	e := NewInvoiceEvent(EventTypeInvoicePaymentFailed, profile.ID, invoice.ID)
	e.AmountDue = invoice.AmountDue
	e.AttemptCount = invoice.AttemptCount
	h.publish(ctx, e)

	h.logger.Warn("Invoice payment failed",
		zap.String("user_id", profile.ID.String()),
		zap.String("invoice_id", invoice.ID))
	return nil
}

// HandleInvoiceUpcoming publishes invoice.upcoming so notification
// consumers can warn the user. Upcoming invoices have no ID yet.
func (h *StripeHandlers) HandleInvoiceUpcoming(ctx context.Context, event *VerifiedEvent) error {
	invoice, profile, err := h.invoiceProfile(ctx, event)
	if err != nil || profile == nil {
		return err
	}

	e := NewInvoiceEvent(EventTypeInvoiceUpcoming, profile.ID, invoice.ID)
	e.AmountDue = invoice.AmountDue
	e.Currency = string(invoice.Currency)
	h.publish(ctx, e)

	h.logger.Info("Upcoming invoice",
		zap.String("user_id", profile.ID.String()),
		zap.Int64("amount_due", invoice.AmountDue))
	return nil
}

func (h *StripeHandlers) paymentIntentProfile(ctx context.Context, event *VerifiedEvent) (*stripe.PaymentIntent, *identity.Profile, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.DataObject, &intent); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	customerID := stripeCustomerID(intent.Customer)
	if customerID == "" {
		h.logger.Warn("Payment intent has no customer, skipping",
			zap.String("payment_intent_id", intent.ID))
		return &intent, nil, nil
	}

	profile, err := h.profiles.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("No profile for Stripe customer, skipping",
				zap.String("customer_id", customerID))
			return &intent, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &intent, profile, nil
}

func (h *StripeHandlers) invoiceProfile(ctx context.Context, event *VerifiedEvent) (*stripe.Invoice, *identity.Profile, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.DataObject, &invoice); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := stripeCustomerID(invoice.Customer)
	if customerID == "" {
		h.logger.Warn("Invoice has no customer, skipping",
			zap.String("invoice_id", invoice.ID))
		return &invoice, nil, nil
	}

	profile, err := h.profiles.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("No profile for Stripe customer, skipping",
				zap.String("customer_id", customerID))
			return &invoice, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &invoice, profile, nil
}

func (h *StripeHandlers) publish(ctx context.Context, event shared.DomainEvent) {
	if h.eventBus == nil {
		return
	}
	if err := h.eventBus.Publish(ctx, event); err != nil {
		h.logger.Error("Failed to publish domain event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

func stripeCustomerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func applyStripePeriod(row *billing.Subscription, sub *stripe.Subscription) {
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0)
		row.CurrentPeriodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		row.CurrentPeriodEnd = &t
	}
}

func applyStripePrice(row *billing.Subscription, sub *stripe.Subscription) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return
	}
	price := sub.Items.Data[0].Price
	if price == nil {
		return
	}
	row.PriceID = price.ID
	if price.Product != nil {
		row.PlanID = price.Product.ID
	}
}
