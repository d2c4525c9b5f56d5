package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/shared"
)

// RedisEventBus decorates a local event bus with Redis pub/sub so events
// reach handlers in every process instance. Published events are delivered
// locally first, then broadcast; events received from the channel are
// dispatched to local handlers only, so each instance handles a remote event
// exactly once.
type RedisEventBus struct {
	local      *InMemoryEventBus
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger

	mu        sync.Mutex
	factories map[string]EventFactory
	pubsub    *redis.PubSub
	done      chan struct{}
}

// EventFactory returns a fresh instance of a concrete event type so a
// relayed payload can be decoded back into it.
type EventFactory func() shared.DomainEvent

// NewRedisEventBus creates a bus broadcasting on the given channel.
// An empty channel defaults to "events:broadcast".
func NewRedisEventBus(local *InMemoryEventBus, client *redis.Client, channel string, logger *zap.Logger) *RedisEventBus {
	if channel == "" {
		channel = "events:broadcast"
	}
	return &RedisEventBus{
		local:      local,
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		factories:  make(map[string]EventFactory),
		logger:     logger,
	}
}

// RegisterType wires an event type to its concrete constructor. Relayed
// events of unregistered types are delivered as *shared.BaseDomainEvent,
// which keeps the envelope fields but drops type-specific ones.
func (b *RedisEventBus) RegisterType(eventType string, factory EventFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[eventType] = factory
}

// remoteEnvelope is the wire form of a broadcast event. Payload holds the
// concrete event's own JSON so type-specific fields survive the relay.
type remoteEnvelope struct {
	Type    string          `json:"type"`
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Publish delivers events locally and broadcasts them to other instances.
func (b *RedisEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if err := b.local.Publish(ctx, events...); err != nil {
		return err
	}

	for _, event := range events {
		wire, err := b.encodeEvent(event)
		if err != nil {
			return err
		}
		if err := b.client.Publish(ctx, b.channel, wire).Err(); err != nil {
			b.logger.Error("failed to broadcast event",
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (b *RedisEventBus) encodeEvent(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal broadcast event: %w", err)
	}
	wire, err := json.Marshal(remoteEnvelope{
		Type:    event.EventType(),
		Source:  b.instanceID,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal broadcast envelope: %w", err)
	}
	return wire, nil
}

// Subscribe registers a local handler.
func (b *RedisEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	b.local.Subscribe(handler, eventTypes...)
}

// Unsubscribe removes a local handler.
func (b *RedisEventBus) Unsubscribe(handler shared.EventHandler) {
	b.local.Unsubscribe(handler)
}

// Start begins consuming broadcast events from the Redis channel.
func (b *RedisEventBus) Start(ctx context.Context) error {
	if err := b.local.Start(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pubsub = b.client.Subscribe(ctx, b.channel)
	b.done = make(chan struct{})

	go b.consume(b.pubsub.Channel(), b.done)

	b.logger.Info("redis event bus started", zap.String("channel", b.channel))
	return nil
}

// Stop closes the subscription and stops the local bus.
func (b *RedisEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.pubsub != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
	}
	if b.done != nil {
		<-b.done
		b.done = nil
	}
	b.mu.Unlock()

	return b.local.Stop(ctx)
}

func (b *RedisEventBus) consume(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for msg := range messages {
		var envelope remoteEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			b.logger.Warn("dropping malformed broadcast event", zap.Error(err))
			continue
		}

		// Events we broadcast were already delivered locally
		if envelope.Source == b.instanceID {
			continue
		}

		event, err := b.decodeEvent(envelope)
		if err != nil {
			b.logger.Warn("dropping undecodable broadcast event",
				zap.String("event_type", envelope.Type),
				zap.Error(err))
			continue
		}
		if err := b.local.Publish(context.Background(), event); err != nil {
			b.logger.Error("failed to dispatch broadcast event",
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
}

func (b *RedisEventBus) decodeEvent(envelope remoteEnvelope) (shared.DomainEvent, error) {
	b.mu.Lock()
	factory, ok := b.factories[envelope.Type]
	b.mu.Unlock()

	if !ok {
		base := &shared.BaseDomainEvent{}
		if err := json.Unmarshal(envelope.Payload, base); err != nil {
			return nil, err
		}
		return base, nil
	}

	event := factory()
	if err := json.Unmarshal(envelope.Payload, event); err != nil {
		return nil, err
	}
	return event, nil
}

var _ shared.EventBus = (*RedisEventBus)(nil)
