// Package models contains the GORM persistence models and their
// conversions to and from domain entities.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/saaskit/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// UserOwnedModel provides common persistence fields for user-owned rows.
// It extends BaseModel with the owning user ID.
type UserOwnedModel struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// ToDomain converts UserOwnedModel to domain UserOwnedEntity
func (m *UserOwnedModel) ToDomain() shared.UserOwnedEntity {
	return shared.UserOwnedEntity{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
	}
}

// FromDomainUserOwnedEntity populates UserOwnedModel from domain UserOwnedEntity
func (m *UserOwnedModel) FromDomainUserOwnedEntity(e shared.UserOwnedEntity) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.UserID = e.UserID
}
