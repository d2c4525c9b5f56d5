package identity

import (
	"context"

	"github.com/google/uuid"
)

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TwoFactorLogRepository records two-factor verification attempts.
type TwoFactorLogRepository interface {
	Create(ctx context.Context, log *TwoFactorLog) error
	ListByProfile(ctx context.Context, profileID uuid.UUID, limit int) ([]*TwoFactorLog, error)
}
