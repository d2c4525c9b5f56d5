package models

import (
	"encoding/json"
	"time"

	"github.com/saaskit/backend/internal/domain/identity"
)

// ProfileModel is the persistence model for the Profile domain entity.
type ProfileModel struct {
	BaseModel
	Email              string                   `gorm:"type:varchar(200);not null;uniqueIndex"`
	DisplayName        string                   `gorm:"type:varchar(200)"`
	PasswordHash       string                   `gorm:"type:varchar(255);not null"`
	StripeCustomerID   string                   `gorm:"type:varchar(100);index"`
	TwoFactorEnabled   bool                     `gorm:"not null;default:false"`
	TwoFactorMethod    identity.TwoFactorMethod `gorm:"type:varchar(20)"`
	TwoFactorSecret    string                   `gorm:"type:varchar(200)"`
	BackupCodeHashes   string                   `gorm:"type:text"`
	TwoFactorEnabledAt *time.Time
	LastLoginAt        *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ToDomain converts the persistence model to a domain Profile entity.
func (m *ProfileModel) ToDomain() *identity.Profile {
	p := &identity.Profile{
		BaseEntity:         m.BaseModel.ToDomain(),
		Email:              m.Email,
		DisplayName:        m.DisplayName,
		PasswordHash:       m.PasswordHash,
		StripeCustomerID:   m.StripeCustomerID,
		TwoFactorEnabled:   m.TwoFactorEnabled,
		TwoFactorMethod:    m.TwoFactorMethod,
		TwoFactorSecret:    m.TwoFactorSecret,
		TwoFactorEnabledAt: m.TwoFactorEnabledAt,
		LastLoginAt:        m.LastLoginAt,
	}
	if m.BackupCodeHashes != "" {
		var hashes []string
		if err := json.Unmarshal([]byte(m.BackupCodeHashes), &hashes); err == nil {
			p.BackupCodeHashes = hashes
		}
	}
	return p
}

// FromDomain populates the persistence model from a domain Profile entity.
func (m *ProfileModel) FromDomain(p *identity.Profile) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Email = p.Email
	m.DisplayName = p.DisplayName
	m.PasswordHash = p.PasswordHash
	m.StripeCustomerID = p.StripeCustomerID
	m.TwoFactorEnabled = p.TwoFactorEnabled
	m.TwoFactorMethod = p.TwoFactorMethod
	m.TwoFactorSecret = p.TwoFactorSecret
	m.TwoFactorEnabledAt = p.TwoFactorEnabledAt
	m.LastLoginAt = p.LastLoginAt

	m.BackupCodeHashes = ""
	if len(p.BackupCodeHashes) > 0 {
		if data, err := json.Marshal(p.BackupCodeHashes); err == nil {
			m.BackupCodeHashes = string(data)
		}
	}
}

// ProfileModelFromDomain creates a new persistence model from a domain Profile entity.
func ProfileModelFromDomain(p *identity.Profile) *ProfileModel {
	m := &ProfileModel{}
	m.FromDomain(p)
	return m
}

// TwoFactorLogModel is the persistence model for two-factor audit entries.
type TwoFactorLogModel struct {
	UserOwnedModel
	Action    identity.TwoFactorAction `gorm:"type:varchar(30);not null"`
	IPAddress string                   `gorm:"type:varchar(45)"`
	UserAgent string                   `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (TwoFactorLogModel) TableName() string {
	return "two_factor_logs"
}

// ToDomain converts the persistence model to a domain TwoFactorLog.
func (m *TwoFactorLogModel) ToDomain() *identity.TwoFactorLog {
	return &identity.TwoFactorLog{
		UserOwnedEntity: m.UserOwnedModel.ToDomain(),
		Action:          m.Action,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
	}
}

// FromDomain populates the persistence model from a domain TwoFactorLog.
func (m *TwoFactorLogModel) FromDomain(l *identity.TwoFactorLog) {
	m.FromDomainUserOwnedEntity(l.UserOwnedEntity)
	m.Action = l.Action
	m.IPAddress = l.IPAddress
	m.UserAgent = l.UserAgent
}

// TwoFactorLogModelFromDomain creates a new persistence model from a domain TwoFactorLog.
func TwoFactorLogModelFromDomain(l *identity.TwoFactorLog) *TwoFactorLogModel {
	m := &TwoFactorLogModel{}
	m.FromDomain(l)
	return m
}
