package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/shared"
)

// Delivery statuses returned to the provider.
const (
	StatusReceived  = "received"
	StatusDuplicate = "duplicate"
)

// Result is the body returned for an accepted delivery.
type Result struct {
	Status string `json:"status"`
}

// Service coordinates the webhook pipeline: verification, idempotent
// acceptance and background dispatch.
type Service struct {
	verifiers      map[string]Verifier
	idempotency    shared.IdempotencyStore
	processor      *Processor
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewService creates the webhook service. Verifiers are registered per
// provider with RegisterVerifier.
func NewService(
	idempotency shared.IdempotencyStore,
	processor *Processor,
	idempotencyTTL time.Duration,
	logger *zap.Logger,
) *Service {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &Service{
		verifiers:      make(map[string]Verifier),
		idempotency:    idempotency,
		processor:      processor,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}
}

// RegisterVerifier wires a provider name to its signature verifier.
func (s *Service) RegisterVerifier(provider string, v Verifier) {
	s.verifiers[provider] = v
}

// HandleDelivery runs the pipeline for one raw delivery. The returned
// Result is "received" for first deliveries and "duplicate" for replays
// inside the idempotency window; both are acknowledged with 200 so the
// provider stops retrying. A verified event missing its id or type is
// also acknowledged as "duplicate" and dropped; retrying it could never
// succeed.
//
// Error mapping: unknown provider → shared.ErrNotFound, failed
// signature check → shared.ErrInvalidSignature.
func (s *Service) HandleDelivery(ctx context.Context, provider string, payload []byte, header http.Header) (*Result, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown webhook provider '%s'", shared.ErrNotFound, provider)
	}

	event, err := verifier.Verify(payload, header)
	if err != nil {
		s.logger.Warn("Webhook verification failed",
			zap.String("provider", provider),
			zap.Error(err))
		return nil, err
	}

	if event.ID == "" || event.Type == "" {
		s.logger.Warn("Dropping verified event without id or type",
			zap.String("provider", provider))
		return &Result{Status: StatusDuplicate}, nil
	}

	// Atomic check-and-set: exactly one delivery of a given event ID can
	// claim the key inside the TTL window.
	claimed, err := s.idempotency.MarkProcessed(ctx, s.idempotencyKey(provider, event.ID), s.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !claimed {
		s.logger.Warn("Duplicate webhook event",
			zap.String("provider", provider),
			zap.String("event_id", event.ID))
		return &Result{Status: StatusDuplicate}, nil
	}

	s.processor.Dispatch(event)

	s.logger.Info("Webhook event accepted",
		zap.String("provider", provider),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
	return &Result{Status: StatusReceived}, nil
}

func (s *Service) idempotencyKey(provider, eventID string) string {
	return provider + ":" + eventID
}

// Shutdown drains in-flight background dispatches.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.processor.Drain(ctx)
}
