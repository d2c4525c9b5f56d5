package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/webhook"
)

// Processor dispatches verified events to typed handlers and keeps the
// durable webhook_events log in sync with the outcome.
type Processor struct {
	records webhook.EventRecordRepository
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

// NewProcessor creates a processor backed by the given event log.
func NewProcessor(records webhook.EventRecordRepository, logger *zap.Logger) *Processor {
	return &Processor{
		records:  records,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler registers a handler for one event type. Later
// registrations for the same type replace earlier ones.
func (p *Processor) RegisterHandler(eventType string, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = handler
	p.logger.Info("Registered webhook handler", zap.String("event_type", eventType))
}

// HandlerCount returns the number of registered event types.
func (p *Processor) HandlerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}

// Dispatch processes the event in a background goroutine. The HTTP
// response does not wait for handler outcomes; failures land on the log
// row instead.
func (p *Processor) Dispatch(event *VerifiedEvent) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Webhook handler panicked",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.Type),
					zap.Any("panic", r))
			}
		}()

		// Detached from the request context: the delivery was already
		// acknowledged.
		p.Process(context.Background(), event)
	}()
}

// Process logs the event and runs its handler synchronously.
func (p *Processor) Process(ctx context.Context, event *VerifiedEvent) {
	record := webhook.NewEventRecord(event.Provider, event.ID, event.Type, event.Payload)
	if err := p.records.Create(ctx, record); err != nil {
		p.logger.Error("Failed to log webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	p.mu.RLock()
	handler, ok := p.handlers[event.Type]
	p.mu.RUnlock()

	if !ok {
		p.logger.Warn("No handler for webhook event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return
	}

	if err := p.runHandler(ctx, handler, event); err != nil {
		p.logger.Error("Webhook handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		record.MarkFailed(err)
	} else {
		record.MarkProcessed(time.Now())
		p.logger.Info("Webhook event processed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
	}

	if err := p.records.Update(ctx, record); err != nil {
		p.logger.Error("Failed to update webhook event log",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func (p *Processor) runHandler(ctx context.Context, handler Handler, event *VerifiedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Drain waits for in-flight background dispatches to finish, or until
// the context is done.
func (p *Processor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
