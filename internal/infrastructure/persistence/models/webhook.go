package models

import (
	"time"

	"github.com/saaskit/backend/internal/domain/webhook"
)

// WebhookEventModel is the persistence model for webhook event log rows.
type WebhookEventModel struct {
	BaseModel
	Provider    string `gorm:"type:varchar(50);not null;uniqueIndex:idx_webhook_provider_event"`
	EventID     string `gorm:"type:varchar(200);not null;uniqueIndex:idx_webhook_provider_event"`
	EventType   string `gorm:"type:varchar(100);not null;index"`
	Payload     []byte `gorm:"type:bytea"`
	Processed   bool   `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
	Error       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain EventRecord.
func (m *WebhookEventModel) ToDomain() *webhook.EventRecord {
	return &webhook.EventRecord{
		BaseEntity:  m.BaseModel.ToDomain(),
		Provider:    m.Provider,
		EventID:     m.EventID,
		EventType:   m.EventType,
		Payload:     m.Payload,
		Processed:   m.Processed,
		ProcessedAt: m.ProcessedAt,
		Error:       m.Error,
	}
}

// FromDomain populates the persistence model from a domain EventRecord.
func (m *WebhookEventModel) FromDomain(r *webhook.EventRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.Provider = r.Provider
	m.EventID = r.EventID
	m.EventType = r.EventType
	m.Payload = r.Payload
	m.Processed = r.Processed
	m.ProcessedAt = r.ProcessedAt
	m.Error = r.Error
}

// WebhookEventModelFromDomain creates a new persistence model from a domain EventRecord.
func WebhookEventModelFromDomain(r *webhook.EventRecord) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(r)
	return m
}
