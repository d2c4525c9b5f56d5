package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/infrastructure/auth"
	"github.com/saaskit/backend/internal/infrastructure/config"
	"github.com/saaskit/backend/internal/infrastructure/logger"
	"github.com/saaskit/backend/internal/infrastructure/plugin"
	"github.com/saaskit/backend/internal/infrastructure/ratelimit"
	"github.com/saaskit/backend/internal/interfaces/http/handler"
	"github.com/saaskit/backend/internal/interfaces/http/middleware"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	System        *handler.SystemHandler
	Auth          *handler.AuthHandler
	TwoFactor     *handler.TwoFactorHandler
	Downloads     *handler.DownloadHandler
	Subscriptions *handler.SubscriptionHandler
	Webhooks      *handler.WebhookHandler
}

// Config carries the cross-cutting dependencies the router wires into
// its middleware stack.
type Config struct {
	HTTP       config.HTTPConfig
	JWTService *auth.JWTService

	// Limiter applies to authenticated API traffic. Nil disables rate
	// limiting.
	Limiter *ratelimit.Limiter
	// WebhookLimiter applies to the unauthenticated webhook intake.
	// Falls back to Limiter when nil.
	WebhookLimiter *ratelimit.Limiter

	// WebhookMaxBodyBytes caps webhook payloads separately from the
	// global body limit.
	WebhookMaxBodyBytes int64

	// Plugins, when set, mounts plugin routes under /api/v1/plugins.
	Plugins *plugin.Registry

	// ServiceName is used for trace span naming.
	ServiceName string
	// TracingEnabled toggles the otelgin middleware.
	TracingEnabled bool

	Logger *zap.Logger
}

// New assembles the gin engine: middleware stack, public endpoints and
// the versioned API surface.
func New(cfg Config, h Handlers) *gin.Engine {
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			cfg.Logger.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request ID first so every later stage can tag
	// its logs, then recovery, logging, security headers, CORS, tracing
	// and the global body limit.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if cfg.TracingEnabled {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}

	maxBody := cfg.HTTP.MaxBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}
	engine.Use(middleware.BodyLimit(maxBody))

	// Health endpoints live outside API versioning so load balancers
	// can probe them without auth.
	engine.GET("/health", h.System.Health)
	engine.GET("/healthz", h.System.Health)
	engine.GET("/ready", h.System.Health)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig(cfg)))
	if cfg.Limiter != nil {
		api.Use(middleware.RateLimit(cfg.Limiter, cfg.Logger))
	}

	api.GET("/health", h.System.Health)

	systemRoutes := api.Group("/system")
	systemRoutes.GET("/info", h.System.GetSystemInfo)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", h.Auth.Register)
	authRoutes.POST("/login", h.Auth.Login)
	authRoutes.POST("/login/2fa", h.Auth.LoginTwoFactor)
	authRoutes.POST("/refresh", h.Auth.Refresh)
	authRoutes.GET("/me", h.Auth.Me)

	twoFactorRoutes := api.Group("/2fa")
	twoFactorRoutes.POST("/setup", h.TwoFactor.Setup)
	twoFactorRoutes.POST("/enable", h.TwoFactor.Enable)
	twoFactorRoutes.POST("/verify", h.TwoFactor.Verify)
	twoFactorRoutes.POST("/verify-backup", h.TwoFactor.VerifyBackup)
	twoFactorRoutes.POST("/disable", h.TwoFactor.Disable)
	twoFactorRoutes.GET("/status", h.TwoFactor.Status)

	downloadRoutes := api.Group("/downloads")
	downloadRoutes.POST("/token", h.Downloads.IssueToken)
	downloadRoutes.GET("/pull/:token", h.Downloads.Pull)
	downloadRoutes.GET("/artifacts", h.Downloads.ListArtifacts)
	downloadRoutes.GET("/history", h.Downloads.History)

	subscriptionRoutes := api.Group("/subscriptions")
	subscriptionRoutes.GET("", h.Subscriptions.List)
	subscriptionRoutes.GET("/me", h.Subscriptions.Me)
	subscriptionRoutes.POST("/:id/cancel", h.Subscriptions.Cancel)

	// Webhook intake is unauthenticated (signature-verified instead)
	// and carries its own body cap and rate limit, so it mounts outside
	// the authenticated API group.
	webhookRoutes := engine.Group("/api/v1/webhooks")
	if cfg.WebhookMaxBodyBytes > 0 {
		webhookRoutes.Use(middleware.BodyLimit(cfg.WebhookMaxBodyBytes))
	}
	if limiter := webhookLimiter(cfg); limiter != nil {
		webhookRoutes.Use(middleware.RateLimitByKey(limiter, cfg.Logger, func(c *gin.Context) string {
			return "webhook:" + c.ClientIP()
		}))
	}
	webhookRoutes.POST("/:provider", h.Webhooks.Receive)

	if cfg.Plugins != nil {
		cfg.Plugins.MountRoutes(api.Group("/plugins"))
	}

	return engine
}

func jwtConfig(cfg Config) middleware.JWTMiddlewareConfig {
	jwtCfg := middleware.DefaultJWTConfig(cfg.JWTService)
	jwtCfg.Logger = cfg.Logger
	return jwtCfg
}

func webhookLimiter(cfg Config) *ratelimit.Limiter {
	if cfg.WebhookLimiter != nil {
		return cfg.WebhookLimiter
	}
	return cfg.Limiter
}
