package plugin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/event"
)

type fakePlugin struct {
	name       string
	eventTypes []string
	started    bool
	stopped    bool
	startErr   error
	stopErr    error
	handled    []shared.DomainEvent
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Routes(group *gin.RouterGroup) {
	group.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plugin": p.name})
	})
}

func (p *fakePlugin) Start(ctx context.Context) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakePlugin) Stop(ctx context.Context) error {
	if p.stopErr != nil {
		return p.stopErr
	}
	p.stopped = true
	return nil
}

func (p *fakePlugin) EventTypes() []string { return p.eventTypes }

func (p *fakePlugin) Handle(ctx context.Context, e shared.DomainEvent) error {
	p.handled = append(p.handled, e)
	return nil
}

type registryTestEvent struct {
	shared.BaseDomainEvent
}

func newRegistryTestEvent(eventType string) *registryTestEvent {
	return &registryTestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "test", uuid.New(), uuid.New()),
	}
}

func TestRegistry_Register(t *testing.T) {
	logger := zap.NewNop()

	t.Run("registers and lists plugins", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		require.NoError(t, r.Register(&fakePlugin{name: "billing-sync"}))
		require.NoError(t, r.Register(&fakePlugin{name: "audit"}))

		assert.Equal(t, []string{"audit", "billing-sync"}, r.Names())

		p, ok := r.Get("audit")
		assert.True(t, ok)
		assert.Equal(t, "audit", p.Name())
	})

	t.Run("rejects nil and empty names", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		assert.ErrorIs(t, r.Register(nil), shared.ErrInvalidInput)
		assert.ErrorIs(t, r.Register(&fakePlugin{name: ""}), shared.ErrInvalidInput)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		require.NoError(t, r.Register(&fakePlugin{name: "dup"}))
		assert.ErrorIs(t, r.Register(&fakePlugin{name: "dup"}), shared.ErrAlreadyExists)
	})

	t.Run("rejects registration after start", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		require.NoError(t, r.Start(context.Background()))
		assert.ErrorIs(t, r.Register(&fakePlugin{name: "late"}), shared.ErrInvalidState)
	})
}

func TestRegistry_Lifecycle(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("starts and stops all plugins", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		a := &fakePlugin{name: "a"}
		b := &fakePlugin{name: "b"}
		require.NoError(t, r.Register(a))
		require.NoError(t, r.Register(b))

		require.NoError(t, r.Start(ctx))
		assert.True(t, a.started)
		assert.True(t, b.started)

		require.NoError(t, r.Stop(ctx))
		assert.True(t, a.stopped)
		assert.True(t, b.stopped)
	})

	t.Run("start failure stops already-started plugins", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		a := &fakePlugin{name: "a"}
		broken := &fakePlugin{name: "broken", startErr: errors.New("boom")}
		require.NoError(t, r.Register(a))
		require.NoError(t, r.Register(broken))

		err := r.Start(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
		assert.True(t, a.stopped)
	})

	t.Run("stop returns first error but stops the rest", func(t *testing.T) {
		r := NewRegistry(nil, logger)
		a := &fakePlugin{name: "a"}
		failing := &fakePlugin{name: "failing", stopErr: errors.New("stuck")}
		require.NoError(t, r.Register(a))
		require.NoError(t, r.Register(failing))
		require.NoError(t, r.Start(ctx))

		err := r.Stop(ctx)
		require.Error(t, err)
		assert.True(t, a.stopped)
	})
}

func TestRegistry_EventSubscription(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	bus := event.NewInMemoryEventBus(logger)
	r := NewRegistry(bus, logger)

	typed := &fakePlugin{name: "typed", eventTypes: []string{"subscription.updated"}}
	wildcard := &fakePlugin{name: "wildcard"}
	require.NoError(t, r.Register(typed))
	require.NoError(t, r.Register(wildcard))

	require.NoError(t, bus.Publish(ctx, newRegistryTestEvent("subscription.updated")))
	require.NoError(t, bus.Publish(ctx, newRegistryTestEvent("profile.created")))

	assert.Len(t, typed.handled, 1)
	assert.Equal(t, "subscription.updated", typed.handled[0].EventType())
	assert.Len(t, wildcard.handled, 2)
}

func TestRegistry_MountRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	r := NewRegistry(nil, logger)
	require.NoError(t, r.Register(&fakePlugin{name: "audit"}))

	router := gin.New()
	r.MountRoutes(router.Group("/api/v1/plugins"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plugins/audit/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "audit")
}
