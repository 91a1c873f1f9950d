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

	complianceapp "github.com/redakta/backend/internal/application/compliance"
	selectionapp "github.com/redakta/backend/internal/application/selection"
	syncapp "github.com/redakta/backend/internal/application/sync"
	trackingapp "github.com/redakta/backend/internal/application/tracking"
	"github.com/redakta/backend/internal/domain/source"
	"github.com/redakta/backend/internal/infrastructure/affiliate"
	"github.com/redakta/backend/internal/infrastructure/cache"
	"github.com/redakta/backend/internal/infrastructure/config"
	"github.com/redakta/backend/internal/infrastructure/logger"
	"github.com/redakta/backend/internal/infrastructure/persistence"
	"github.com/redakta/backend/internal/infrastructure/scheduler"
	"github.com/redakta/backend/internal/infrastructure/telemetry"
	"github.com/redakta/backend/internal/interfaces/http/handler"
	"github.com/redakta/backend/internal/interfaces/http/middleware"
	"github.com/redakta/backend/internal/interfaces/http/router"
)

//	@title			Offer Backend API
//	@version		1.0
//	@description	Affiliate offer aggregation backend: source sync, compliance, selection and click tracking.

//	@host		localhost:8080
//	@BasePath	/api/v1

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

	log.Info("Starting offer backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry: tracing, metrics, continuous profiling
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	offerMetrics, err := telemetry.NewOfferMetrics(meterProvider.Meter("offer-backend"), log)
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilerEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Repositories
	offerRepo := persistence.NewGormOfferRepository(db.DB)
	sourceRepo := persistence.NewGormSourceRepository(db.DB)
	clickRepo := persistence.NewGormClickRepository(db.DB)
	ruleRepo := persistence.NewGormComplianceRuleRepository(db.DB)

	// Selection cache (Redis or in-memory, per config)
	selectionCache, err := cache.NewSelectionCache(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize selection cache", zap.Error(err))
	}
	defer func() {
		if err := selectionCache.Close(); err != nil {
			log.Error("Selection cache close failed", zap.Error(err))
		}
	}()

	// Affiliate network plugins
	registry := affiliate.NewRegistry()
	if err := registry.Register(func() source.Plugin { return affiliate.NewAmazonPlugin() }); err != nil {
		log.Fatal("Failed to register amazon plugin", zap.Error(err))
	}
	if err := registry.Register(func() source.Plugin { return affiliate.NewShareASalePlugin() }); err != nil {
		log.Fatal("Failed to register shareasale plugin", zap.Error(err))
	}
	log.Info("Affiliate plugins registered", zap.Strings("plugins", registry.List()))

	// Application services
	complianceService := complianceapp.NewService(offerRepo, ruleRepo, selectionCache, log)
	selectionService := selectionapp.NewService(offerRepo, selectionCache, complianceService, cfg, log,
		selectionapp.WithMetrics(offerMetrics),
	)
	syncService := syncapp.NewService(sourceRepo, offerRepo, registry, selectionCache, log,
		syncapp.WithSourceTimeout(cfg.Sync.SourceTimeout),
		syncapp.WithMetrics(offerMetrics),
	)
	trackingService := trackingapp.NewService(clickRepo, offerRepo, cfg.Tracking.RedirectBaseURL, log,
		trackingapp.WithStatsWindow(cfg.Tracking.StatsWindowDays),
		trackingapp.WithMetrics(offerMetrics),
	)

	// Background schedulers
	if cfg.Sync.Enabled {
		syncScheduler := scheduler.NewSyncScheduler(scheduler.SyncConfig{
			Enabled:  cfg.Sync.Enabled,
			Interval: cfg.Sync.Interval,
		}, syncService, log)
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			if err := syncScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
	}
	if cfg.Selection.RotationEnabled {
		rotationScheduler := scheduler.NewRotationScheduler(scheduler.RotationConfig{
			Enabled:  cfg.Selection.RotationEnabled,
			Interval: cfg.Selection.RotationInterval,
		}, selectionService, log)
		if err := rotationScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start rotation scheduler", zap.Error(err))
		}
		// Warm the baseline slices now instead of waiting a full interval.
		if err := rotationScheduler.TriggerNow(ctx); err != nil {
			log.Warn("Initial offer rotation failed", zap.Error(err))
		}
		defer func() {
			if err := rotationScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping rotation scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP handlers
	offerHandler := handler.NewOfferHandler(selectionService)
	trackingHandler := handler.NewTrackingHandler(trackingService)
	complianceHandler := handler.NewComplianceHandler(complianceService)
	syncHandler := handler.NewSyncHandler(syncService)
	cacheHandler := handler.NewCacheHandler(selectionService)
	systemHandler := handler.NewSystemHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check and the public redirect live outside API versioning.
	// The redirect path stays short because it ends up on affiliate pages.
	engine.GET("/healthz", systemHandler.Health)
	engine.GET("/go/:slug", trackingHandler.Redirect)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Offer selection and per-offer stats/compliance
	offerRoutes := router.NewDomainGroup("offers", "/offers")
	offerRoutes.GET("", offerHandler.GetOffers)
	offerRoutes.POST("/select", offerHandler.SelectOffers)
	offerRoutes.GET("/:id/stats", trackingHandler.GetOfferStats)
	complianceRoutes := offerRoutes.Group("compliance", "/:id/compliance")
	complianceRoutes.GET("", complianceHandler.CheckCompliance)
	complianceRoutes.POST("/fix", complianceHandler.AutoFix)

	// Click and conversion tracking
	trackingRoutes := router.NewDomainGroup("tracking", "/tracking")
	trackingRoutes.POST("/clicks", trackingHandler.TrackClick)
	trackingRoutes.POST("/conversions", trackingHandler.TrackConversion)

	// Source sync
	sourceRoutes := router.NewDomainGroup("sources", "/sources")
	sourceRoutes.POST("/:id/sync", syncHandler.SyncSource)
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("", syncHandler.SyncAll)

	// Selection cache operations
	cacheRoutes := router.NewDomainGroup("cache", "/cache")
	cacheRoutes.POST("/refresh", cacheHandler.Refresh)
	cacheRoutes.POST("/invalidate", cacheHandler.Invalidate)

	r.Register(offerRoutes).
		Register(trackingRoutes).
		Register(sourceRoutes).
		Register(syncRoutes).
		Register(cacheRoutes)

	r.Setup()

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
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
