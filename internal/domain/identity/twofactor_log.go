package identity

import (
	"github.com/google/uuid"

	"github.com/saaskit/backend/internal/domain/shared"
)

// TwoFactorAction names an entry in the two-factor audit log.
type TwoFactorAction string

const (
	TwoFactorActionSetup          TwoFactorAction = "setup"
	TwoFactorActionEnabled        TwoFactorAction = "enabled"
	TwoFactorActionDisabled       TwoFactorAction = "disabled"
	TwoFactorActionVerifySuccess  TwoFactorAction = "verify_success"
	TwoFactorActionVerifyFailure  TwoFactorAction = "verify_failure"
	TwoFactorActionBackupCodeUsed TwoFactorAction = "backup_code_used"
)

// TwoFactorLog is an audit record of a two-factor event for a profile.
type TwoFactorLog struct {
	shared.UserOwnedEntity
	Action    TwoFactorAction
	IPAddress string
	UserAgent string
}

// NewTwoFactorLog creates an audit entry for the given profile.
func NewTwoFactorLog(profileID uuid.UUID, action TwoFactorAction, ip, userAgent string) *TwoFactorLog {
	return &TwoFactorLog{
		UserOwnedEntity: shared.NewUserOwnedEntity(profileID),
		Action:          action,
		IPAddress:       ip,
		UserAgent:       userAgent,
	}
}
