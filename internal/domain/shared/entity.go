package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides common identity and timestamp fields for all entities.
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBaseEntity creates a BaseEntity with a fresh ID and timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the entity's UpdatedAt timestamp.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// UserOwnedEntity is a BaseEntity owned by a single platform user.
// Every user-visible row in the system carries the owning user ID.
type UserOwnedEntity struct {
	BaseEntity
	UserID uuid.UUID `json:"user_id"`
}

// NewUserOwnedEntity creates a UserOwnedEntity for the given user.
func NewUserOwnedEntity(userID uuid.UUID) UserOwnedEntity {
	return UserOwnedEntity{
		BaseEntity: NewBaseEntity(),
		UserID:     userID,
	}
}
