package models

import (
	"github.com/saaskit/backend/internal/domain/registry"
)

// DownloadLogModel is the persistence model for download audit rows.
type DownloadLogModel struct {
	UserOwnedModel
	Token     string                  `gorm:"type:varchar(100);index"`
	Artifact  string                  `gorm:"type:varchar(200);not null"`
	Action    registry.DownloadAction `gorm:"type:varchar(30);not null"`
	IPAddress string                  `gorm:"type:varchar(45)"`
	UserAgent string                  `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (DownloadLogModel) TableName() string {
	return "download_logs"
}

// ToDomain converts the persistence model to a domain DownloadLog.
func (m *DownloadLogModel) ToDomain() *registry.DownloadLog {
	return &registry.DownloadLog{
		UserOwnedEntity: m.UserOwnedModel.ToDomain(),
		Token:           m.Token,
		Artifact:        m.Artifact,
		Action:          m.Action,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
	}
}

// FromDomain populates the persistence model from a domain DownloadLog.
func (m *DownloadLogModel) FromDomain(l *registry.DownloadLog) {
	m.FromDomainUserOwnedEntity(l.UserOwnedEntity)
	m.Token = l.Token
	m.Artifact = l.Artifact
	m.Action = l.Action
	m.IPAddress = l.IPAddress
	m.UserAgent = l.UserAgent
}

// DownloadLogModelFromDomain creates a new persistence model from a domain DownloadLog.
func DownloadLogModelFromDomain(l *registry.DownloadLog) *DownloadLogModel {
	m := &DownloadLogModel{}
	m.FromDomain(l)
	return m
}
