package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/shared"
)

// Registry manages plugin registration and lifecycle.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
	bus     shared.EventBus
	logger  *zap.Logger
	started bool
}

// NewRegistry creates a plugin registry wired to the given event bus.
func NewRegistry(bus shared.EventBus, logger *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		bus:     bus,
		logger:  logger,
	}
}

// Register adds a plugin to the registry and subscribes it to the event
// bus. Registration must happen before Start.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: plugin cannot be nil", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("%w: plugin name cannot be empty", shared.ErrInvalidInput)
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: plugin '%s' already registered", shared.ErrAlreadyExists, name)
	}
	if r.started {
		return fmt.Errorf("%w: cannot register plugin '%s' after start", shared.ErrInvalidState, name)
	}

	if r.bus != nil {
		r.bus.Subscribe(&pluginEventHandler{plugin: p}, p.EventTypes()...)
	}

	r.plugins[name] = p
	r.order = append(r.order, name)

	r.logger.Info("Plugin registered",
		zap.String("plugin", name),
		zap.Strings("event_types", p.EventTypes()),
	)
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.plugins[name]
	return p, exists
}

// Names returns all registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MountRoutes mounts every plugin's routes under the given parent group,
// one subgroup per plugin name.
func (r *Registry) MountRoutes(parent *gin.RouterGroup) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		group := parent.Group("/" + name)
		r.plugins[name].Routes(group)
		r.logger.Debug("Plugin routes mounted", zap.String("plugin", name))
	}
}

// Start starts all plugins in registration order. The first failure stops
// already-started plugins and is returned.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	for i, name := range r.order {
		if err := r.plugins[name].Start(ctx); err != nil {
			r.stopPlugins(ctx, r.order[:i])
			return fmt.Errorf("failed to start plugin '%s': %w", name, err)
		}
		r.logger.Info("Plugin started", zap.String("plugin", name))
	}

	r.started = true
	return nil
}

// Stop stops all plugins in reverse registration order. All plugins are
// stopped even if some fail; the first error is returned.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}
	r.started = false

	return r.stopPlugins(ctx, r.order)
}

func (r *Registry) stopPlugins(ctx context.Context, names []string) error {
	var firstErr error
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("Plugin stop failed",
				zap.String("plugin", name),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop plugin '%s': %w", name, err)
			}
			continue
		}
		r.logger.Info("Plugin stopped", zap.String("plugin", name))
	}
	return firstErr
}

// pluginEventHandler adapts a Plugin to the shared.EventHandler interface.
type pluginEventHandler struct {
	plugin Plugin
}

func (h *pluginEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return h.plugin.Handle(ctx, event)
}

func (h *pluginEventHandler) EventTypes() []string {
	return h.plugin.EventTypes()
}
