package identity

import (
	"time"

	"github.com/saaskit/backend/internal/domain/shared"
)

// TwoFactorMethod identifies how a profile performs second-factor checks.
type TwoFactorMethod string

const (
	TwoFactorMethodNone TwoFactorMethod = ""
	TwoFactorMethodTOTP TwoFactorMethod = "totp"
)

// Profile is a platform user account.
// It carries the billing linkage (Stripe customer ID) and the two-factor
// state: the enrolled TOTP secret and the SHA-256 hashes of unused backup
// codes.
type Profile struct {
	shared.BaseEntity
	Email              string
	DisplayName        string
	PasswordHash       string
	StripeCustomerID   string
	TwoFactorEnabled   bool
	TwoFactorMethod    TwoFactorMethod
	TwoFactorSecret    string
	BackupCodeHashes   []string
	TwoFactorEnabledAt *time.Time
	LastLoginAt        *time.Time
}

// NewProfile creates a profile for the given email.
func NewProfile(email, displayName, passwordHash string) *Profile {
	return &Profile{
		BaseEntity:   shared.NewBaseEntity(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
	}
}

// EnableTwoFactor records a completed TOTP enrollment.
func (p *Profile) EnableTwoFactor(secret string, backupCodeHashes []string) {
	now := time.Now()
	p.TwoFactorEnabled = true
	p.TwoFactorMethod = TwoFactorMethodTOTP
	p.TwoFactorSecret = secret
	p.BackupCodeHashes = backupCodeHashes
	p.TwoFactorEnabledAt = &now
	p.Touch()
}

// DisableTwoFactor clears all two-factor state.
func (p *Profile) DisableTwoFactor() {
	p.TwoFactorEnabled = false
	p.TwoFactorMethod = TwoFactorMethodNone
	p.TwoFactorSecret = ""
	p.BackupCodeHashes = nil
	p.TwoFactorEnabledAt = nil
	p.Touch()
}

// ConsumeBackupCode removes the given hash from the unused set.
// Returns false if the hash is not present (already used or never issued).
func (p *Profile) ConsumeBackupCode(hash string) bool {
	for i, h := range p.BackupCodeHashes {
		if h == hash {
			p.BackupCodeHashes = append(p.BackupCodeHashes[:i], p.BackupCodeHashes[i+1:]...)
			p.Touch()
			return true
		}
	}
	return false
}

// RecordLogin stamps the last successful login time.
func (p *Profile) RecordLogin(at time.Time) {
	p.LastLoginAt = &at
	p.Touch()
}

// SetStripeCustomerID links the profile to a billing customer.
func (p *Profile) SetStripeCustomerID(id string) {
	p.StripeCustomerID = id
	p.Touch()
}
