package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/saaskit/backend/internal/domain/billing"
)

// SubscriptionModel is the persistence model for subscription mirror rows.
type SubscriptionModel struct {
	UserOwnedModel
	StripeCustomerID     string                     `gorm:"type:varchar(100);not null;index"`
	StripeSubscriptionID string                     `gorm:"type:varchar(100);not null;uniqueIndex"`
	Status               billing.SubscriptionStatus `gorm:"type:varchar(30);not null"`
	PlanID               string                     `gorm:"type:varchar(100)"`
	PriceID              string                     `gorm:"type:varchar(100)"`
	Currency             string                     `gorm:"type:varchar(10)"`
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool `gorm:"not null;default:false"`
	CanceledAt           *time.Time
	LastInvoiceID        string          `gorm:"type:varchar(100)"`
	LastInvoiceAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastInvoiceStatus    string          `gorm:"type:varchar(30)"`
	LastInvoiceAt        *time.Time
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription entity.
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		UserOwnedEntity:      m.UserOwnedModel.ToDomain(),
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		Status:               m.Status,
		PlanID:               m.PlanID,
		PriceID:              m.PriceID,
		Currency:             m.Currency,
		CurrentPeriodStart:   m.CurrentPeriodStart,
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		CancelAtPeriodEnd:    m.CancelAtPeriodEnd,
		CanceledAt:           m.CanceledAt,
		LastInvoiceID:        m.LastInvoiceID,
		LastInvoiceAmount:    m.LastInvoiceAmount,
		LastInvoiceStatus:    m.LastInvoiceStatus,
		LastInvoiceAt:        m.LastInvoiceAt,
	}
}

// FromDomain populates the persistence model from a domain Subscription entity.
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainUserOwnedEntity(s.UserOwnedEntity)
	m.StripeCustomerID = s.StripeCustomerID
	m.StripeSubscriptionID = s.StripeSubscriptionID
	m.Status = s.Status
	m.PlanID = s.PlanID
	m.PriceID = s.PriceID
	m.Currency = s.Currency
	m.CurrentPeriodStart = s.CurrentPeriodStart
	m.CurrentPeriodEnd = s.CurrentPeriodEnd
	m.CancelAtPeriodEnd = s.CancelAtPeriodEnd
	m.CanceledAt = s.CanceledAt
	m.LastInvoiceID = s.LastInvoiceID
	m.LastInvoiceAmount = s.LastInvoiceAmount
	m.LastInvoiceStatus = s.LastInvoiceStatus
	m.LastInvoiceAt = s.LastInvoiceAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription entity.
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}
