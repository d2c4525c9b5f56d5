// Package plugin provides the compile-time plugin registry. Plugins extend
// the platform with their own HTTP routes and event subscriptions without
// the core knowing about them.
package plugin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/saaskit/backend/internal/domain/shared"
)

// Plugin is a self-contained platform extension. Implementations are
// registered at startup; there is no dynamic loading.
type Plugin interface {
	// Name returns the unique identifier for the plugin. It becomes the
	// route prefix under /api/v1/plugins/<name>.
	Name() string

	// Routes mounts the plugin's HTTP endpoints on its route group.
	// A plugin without an HTTP surface can make this a no-op.
	Routes(group *gin.RouterGroup)

	// Start is called once when the application boots, after routes are
	// mounted and event subscriptions are in place.
	Start(ctx context.Context) error

	// Stop is called during graceful shutdown, in reverse registration
	// order.
	Stop(ctx context.Context) error

	// EventTypes returns the domain event types the plugin wants to
	// receive. An empty slice subscribes it to all events.
	EventTypes() []string

	// Handle processes a domain event the plugin subscribed to.
	Handle(ctx context.Context, event shared.DomainEvent) error
}
