// Package billing exposes the read surface over the subscription mirror
// and the cancel flow against the payment provider.
//
// Mirror rows are written only by the webhook pipeline; this service
// never mutates local state directly. Cancellation goes to the provider
// and the resulting webhook brings the row up to date.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/payment"
)

// Service reads subscription state and forwards cancel requests.
type Service struct {
	subscriptions billing.SubscriptionRepository
	profiles      identity.ProfileRepository
	payments      payment.Provider
	logger        *zap.Logger
}

// NewService creates the billing service.
func NewService(
	subscriptions billing.SubscriptionRepository,
	profiles identity.ProfileRepository,
	payments payment.Provider,
	logger *zap.Logger,
) *Service {
	return &Service{
		subscriptions: subscriptions,
		profiles:      profiles,
		payments:      payments,
		logger:        logger,
	}
}

// EnsureCustomer returns the user's payment provider customer ID,
// creating the provider-side customer on first use.
func (s *Service) EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	customer, err := s.payments.CreateCustomer(ctx, payment.CreateCustomerInput{
		UserID: profile.ID,
		Email:  profile.Email,
		Name:   profile.DisplayName,
		Metadata: map[string]string{
			"user_id": profile.ID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	profile.SetStripeCustomerID(customer.CustomerID)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return "", fmt.Errorf("failed to link customer: %w", err)
	}

	s.logger.Info("Customer provisioned",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", customer.CustomerID))
	return customer.CustomerID, nil
}

// List returns all of the user's subscription mirror rows.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	subs, err := s.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []*billing.Subscription{}
	}
	return subs, nil
}

// Current returns the user's entitled subscription, or shared.ErrNotFound
// when none is active or trialing.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	sub, err := s.subscriptions.FindEntitledByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active subscription", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

// Cancel asks the payment provider to cancel the subscription at period
// end. The mirror row is updated later by the subscription.updated
// webhook, so callers should not expect an immediate status change.
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID, reason string) (*billing.Subscription, error) {
	sub, err := s.subscriptions.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("%w: subscription belongs to another user", shared.ErrForbidden)
	}
	if !sub.IsEntitled() {
		return nil, fmt.Errorf("%w: subscription is not active", shared.ErrInvalidState)
	}

	providerSub, err := s.payments.CancelSubscription(ctx, payment.CancelSubscriptionInput{
		SubscriptionID:    sub.StripeSubscriptionID,
		CancelAtPeriodEnd: true,
		Reason:            reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logger.Info("Subscription cancel requested",
		zap.String("user_id", userID.String()),
		zap.String("subscription_id", sub.StripeSubscriptionID),
		zap.String("provider_status", providerSub.Status.String()))

	sub.CancelAtPeriodEnd = providerSub.CancelAtPeriodEnd
	return sub, nil
}
