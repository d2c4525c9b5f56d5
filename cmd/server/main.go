package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/saaskit/backend/internal/application/billing"
	identityapp "github.com/saaskit/backend/internal/application/identity"
	registryapp "github.com/saaskit/backend/internal/application/registry"
	twofactorapp "github.com/saaskit/backend/internal/application/twofactor"
	webhookapp "github.com/saaskit/backend/internal/application/webhook"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/auth"
	"github.com/saaskit/backend/internal/infrastructure/cache"
	"github.com/saaskit/backend/internal/infrastructure/config"
	"github.com/saaskit/backend/internal/infrastructure/event"
	"github.com/saaskit/backend/internal/infrastructure/logger"
	"github.com/saaskit/backend/internal/infrastructure/payment"
	"github.com/saaskit/backend/internal/infrastructure/persistence"
	"github.com/saaskit/backend/internal/infrastructure/plugin"
	"github.com/saaskit/backend/internal/infrastructure/ratelimit"
	"github.com/saaskit/backend/internal/infrastructure/storage"
	"github.com/saaskit/backend/internal/infrastructure/telemetry"
	"github.com/saaskit/backend/internal/interfaces/http/handler"
	"github.com/saaskit/backend/internal/interfaces/http/middleware"
	"github.com/saaskit/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting SaaS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Continuous profiling
	var profiler *telemetry.Profiler
	if cfg.Telemetry.ProfilingEnabled {
		profiler, err = telemetry.NewProfiler(
			telemetry.DefaultProfilerConfig(cfg.Telemetry.PyroscopeEndpoint, cfg.Telemetry.ServiceName),
			log,
		)
		if err != nil {
			log.Warn("Failed to start profiler, continuing without it", zap.Error(err))
		} else {
			defer func() {
				if err := profiler.Stop(); err != nil {
					log.Error("Error stopping profiler", zap.Error(err))
				}
			}()
			if tracerProvider.IsEnabled() {
				if err := tracerProvider.EnableSpanProfiles(); err != nil {
					log.Warn("Failed to enable span profiles", zap.Error(err))
				}
			}
		}
	}

	// Database
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Carry traces past the HTTP layer into GORM queries.
	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled
	if err := telemetry.NewDBTracing(dbTracingCfg, log).Register(db.DB); err != nil {
		log.Warn("Failed to register database tracing, continuing without it", zap.Error(err))
	}

	// Cache
	cacheProvider, err := cache.NewFactory(cfg, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create cache provider", zap.Error(err))
	}
	defer func() {
		if err := cacheProvider.Close(); err != nil {
			log.Error("Error closing cache provider", zap.Error(err))
		}
	}()

	// Event bus: in-memory locally, fanned out over Redis pub/sub when
	// the cache backend is Redis.
	localBus := event.NewInMemoryEventBus(log)
	var eventBus shared.EventBus = localBus
	if redisProvider, ok := cacheProvider.(*cache.RedisProvider); ok {
		redisBus := event.NewRedisEventBus(localBus, redisProvider.GetClient(), "saaskit:events", log)
		for eventType, factory := range webhookapp.EventFactories() {
			redisBus.RegisterType(eventType, factory)
		}
		eventBus = redisBus
		log.Info("Event bus fan-out over Redis enabled")
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Payment provider
	paymentProvider, err := payment.NewProvider(cfg.Payment, log)
	if err != nil {
		log.Fatal("Failed to create payment provider", zap.Error(err))
	}

	// Object storage
	objectStorage, err := storage.NewObjectStorage(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}

	// Repositories
	profileRepo := persistence.NewGormProfileRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	twoFactorLogRepo := persistence.NewGormTwoFactorLogRepository(db.DB)
	downloadLogRepo := persistence.NewGormDownloadLogRepository(db.DB)
	eventRecordRepo := persistence.NewGormEventRecordRepository(db.DB)

	// Webhook pipeline
	var idempotency shared.IdempotencyStore = cache.PassthroughIdempotencyStore{}
	if cfg.Webhook.IdempotencyEnabled {
		idempotency = cache.NewIdempotencyStore(cacheProvider, "webhook:")
	}

	processor := webhookapp.NewProcessor(eventRecordRepo, log)
	stripeHandlers := webhookapp.NewStripeHandlers(profileRepo, subscriptionRepo, eventBus, log)
	stripeHandlers.RegisterAll(processor)

	webhookService := webhookapp.NewService(idempotency, processor, cfg.Webhook.IdempotencyTTL, log)
	webhookService.RegisterVerifier(paymentProvider.Name(),
		webhookapp.NewStripeVerifier(cfg.Payment.StripeWebhookSecret, cfg.Webhook.SigningTolerance))

	// Application services
	jwtService := auth.NewJWTService(cfg.JWT)
	twoFactorService := twofactorapp.NewService(profileRepo, twoFactorLogRepo, cacheProvider, twofactorapp.Config{
		Issuer:          cfg.TwoFactor.Issuer,
		SetupTTL:        cfg.TwoFactor.SetupTTL,
		BackupCodeCount: cfg.TwoFactor.BackupCodeCount,
	}, log)
	identityService := identityapp.NewService(profileRepo, twoFactorService, jwtService, log)
	registryService := registryapp.NewService(subscriptionRepo, downloadLogRepo, cacheProvider, objectStorage, registryapp.Config{
		BaseURL:  cfg.Registry.BaseURL,
		TokenTTL: cfg.Registry.TokenTTL,
	}, log)
	billingService := billingapp.NewService(subscriptionRepo, profileRepo, paymentProvider, log)
	identityService.SetCustomerProvisioner(billingService)

	// Plugin registry
	plugins := plugin.NewRegistry(eventBus, log)
	if err := plugins.Start(ctx); err != nil {
		log.Fatal("Failed to start plugins", zap.Error(err))
	}
	defer func() {
		if err := plugins.Stop(context.Background()); err != nil {
			log.Error("Error stopping plugins", zap.Error(err))
		}
	}()

	// Rate limiting
	var limiter *ratelimit.Limiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = ratelimit.New(cacheProvider, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// HTTP layer
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	handlers := router.Handlers{
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"database": db,
			"cache":    cacheProvider,
		}),
		Auth:          handler.NewAuthHandler(identityService),
		TwoFactor:     handler.NewTwoFactorHandler(twoFactorService),
		Downloads:     handler.NewDownloadHandler(registryService),
		Subscriptions: handler.NewSubscriptionHandler(billingService),
		Webhooks:      handler.NewWebhookHandler(webhookService),
	}

	engine := router.New(router.Config{
		HTTP:                cfg.HTTP,
		JWTService:          jwtService,
		Limiter:             limiter,
		WebhookMaxBodyBytes: cfg.Webhook.MaxPayloadBytes,
		Plugins:             plugins,
		ServiceName:         cfg.Telemetry.ServiceName,
		TracingEnabled:      cfg.Telemetry.Enabled,
		Logger:              log,
	}, handlers)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight webhook handlers finish before the process exits.
	if err := webhookService.Shutdown(shutdownCtx); err != nil {
		log.Error("Webhook drain interrupted", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
