package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/saaskit/backend/internal/domain/shared"
)

// DownloadToken grants time-limited pull access to the artifact registry.
// Tokens live in the cache keyed by their opaque value; this struct is the
// cached payload.
type DownloadToken struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	Artifact  string    `json:"artifact"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its lifetime at the given
// instant.
func (t *DownloadToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// DownloadLog records a token issuance or an artifact pull.
type DownloadLog struct {
	shared.UserOwnedEntity
	Token     string
	Artifact  string
	Action    DownloadAction
	IPAddress string
	UserAgent string
}

// DownloadAction names a download log entry.
type DownloadAction string

const (
	DownloadActionTokenIssued DownloadAction = "token_issued"
	DownloadActionPull        DownloadAction = "pull"
	DownloadActionDenied      DownloadAction = "denied"
)

// NewDownloadLog creates a log entry for the given user.
func NewDownloadLog(userID uuid.UUID, token, artifact string, action DownloadAction, ip, userAgent string) *DownloadLog {
	return &DownloadLog{
		UserOwnedEntity: shared.NewUserOwnedEntity(userID),
		Token:           token,
		Artifact:        artifact,
		Action:          action,
		IPAddress:       ip,
		UserAgent:       userAgent,
	}
}
