package webhook

import (
	"time"

	"github.com/saaskit/backend/internal/domain/shared"
)

// EventRecord is the durable log row for a received webhook event.
// One row is written per accepted delivery before dispatch; the processor
// flips Processed or stores Error once handling finishes.
type EventRecord struct {
	shared.BaseEntity
	Provider    string
	EventID     string
	EventType   string
	Payload     []byte
	Processed   bool
	ProcessedAt *time.Time
	Error       string
}

// NewEventRecord creates a log row for a verified delivery.
func NewEventRecord(provider, eventID, eventType string, payload []byte) *EventRecord {
	return &EventRecord{
		BaseEntity: shared.NewBaseEntity(),
		Provider:   provider,
		EventID:    eventID,
		EventType:  eventType,
		Payload:    payload,
	}
}

// MarkProcessed flags the row as successfully handled.
func (r *EventRecord) MarkProcessed(at time.Time) {
	r.Processed = true
	r.ProcessedAt = &at
	r.Error = ""
	r.Touch()
}

// MarkFailed stores the handler error on the row. The row stays
// unprocessed so operators can replay it.
func (r *EventRecord) MarkFailed(err error) {
	r.Processed = false
	r.Error = err.Error()
	r.Touch()
}
