package webhook

import (
	"context"

	"github.com/google/uuid"
)

// EventRecordRepository persists webhook event log rows.
type EventRecordRepository interface {
	Create(ctx context.Context, record *EventRecord) error
	Update(ctx context.Context, record *EventRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*EventRecord, error)
	FindByEventID(ctx context.Context, provider, eventID string) (*EventRecord, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*EventRecord, error)
}
