// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/uniflow-chat/internal/archive"
	"github.com/garyellow/uniflow-chat/internal/buildinfo"
	"github.com/garyellow/uniflow-chat/internal/config"
	"github.com/garyellow/uniflow-chat/internal/dialogue"
	"github.com/garyellow/uniflow-chat/internal/genai"
	"github.com/garyellow/uniflow-chat/internal/logger"
	"github.com/garyellow/uniflow-chat/internal/metrics"
	"github.com/garyellow/uniflow-chat/internal/nlu"
	"github.com/garyellow/uniflow-chat/internal/normalize"
	"github.com/garyellow/uniflow-chat/internal/ratelimit"
	"github.com/garyellow/uniflow-chat/internal/sentry"
	"github.com/garyellow/uniflow-chat/internal/session"
	"github.com/garyellow/uniflow-chat/internal/storage"
)

// Limiter names reported in metrics.
const (
	globalLimiterName = "global"
	clientLimiterName = "client"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg           *config.Config
	logger        *logger.Logger
	db            *storage.DB
	metrics       *metrics.Metrics
	registry      *prometheus.Registry
	chatModel     genai.ChatModel
	sessions      *session.Store
	engine        *dialogue.Engine
	archiver      *archive.Archiver // nil when archiving is disabled
	globalLimiter *ratelimit.Limiter
	clientLimiter *ratelimit.KeyedLimiter
	router        *gin.Engine
	server        *http.Server
	wg            sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
// A missing model provider is reported as errors.ErrConfiguration.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
		// Metrics are registered below; Global stays nil-safe until then.
		Async: logger.AsyncOptions{OnDrop: func(reason string) {
			metrics.Global().RecordLogDropped(reason)
		}},
	})

	log = log.WithField("service", cfg.ServerName)
	instanceID := cfg.InstanceID
	if instanceID == "" {
		if host, err := os.Hostname(); err == nil {
			instanceID = host
		}
	}
	if instanceID != "" {
		log = log.WithField("instance_id", instanceID)
	}

	// Package-level slog.*Context() calls pick up session and request ids
	// through the ContextHandler.
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	release := cfg.SentryRelease
	if release == "" {
		release = buildinfo.Release()
	}
	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     release,
		ServerName:  cfg.ServerName,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, error tracking disabled")
	} else if sentry.IsEnabled() {
		log.WithField("host", cfg.SentryHost).Info("Sentry error tracking enabled")
	}

	normalize.SetLocation(cfg.Timezone)
	log.WithField("timezone", normalize.Location().String()).Debug("Date resolution zone set")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	// genai and nlu report through the global handle.
	metrics.InitGlobal(m)

	chat, err := genai.CreateChatModel(ctx, buildLLMConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		_ = chat.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled {
		archiver, err = newArchiver(ctx, cfg, m, log)
		if err != nil {
			_ = chat.Close()
			_ = db.Close()
			return nil, fmt.Errorf("archive: %w", err)
		}
		log.WithField("bucket", cfg.ArchiveBucketName).
			WithField("prefix", cfg.ArchivePrefix).
			Info("Event archive enabled")
	}

	sessions := session.NewStore(session.Config{
		TTL:           cfg.Chat.SessionTTL,
		SweepInterval: cfg.Chat.SessionSweepInterval,
		MaxTurns:      cfg.Chat.MaxTurns,
		OnCountChange: m.SetSessionsActive,
	})

	engineCfg := dialogue.EngineConfig{
		Model: nlu.New(chat, nlu.Config{
			HistoryLimit: cfg.Chat.HistoryLimit,
		}),
		Sessions:         sessions,
		Events:           db,
		Logger:           log,
		Metrics:          m,
		PublishThreshold: cfg.Chat.PublishThreshold,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	}
	if archiver != nil {
		engineCfg.Archiver = archiver
	}

	app := &Application{
		cfg:       cfg,
		logger:    log,
		db:        db,
		metrics:   m,
		registry:  registry,
		chatModel: chat,
		sessions:  sessions,
		engine:    dialogue.NewEngine(engineCfg),
		archiver:  archiver,
		globalLimiter: ratelimit.New(
			cfg.Chat.GlobalRateLimitRPS,
			cfg.Chat.GlobalRateLimitRPS,
		),
		clientLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          clientLimiterName,
			Burst:         cfg.Chat.TurnRateBurst,
			RefillRate:    cfg.Chat.TurnRatePerHour / 3600.0, // Convert hourly to per-second
			DailyLimit:    cfg.Chat.TurnDailyLimit,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
	}
	gin.SetMode(gin.ReleaseMode)
	app.setupRouter()

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gzhttp.GzipHandler(app.router),
		ReadHeaderTimeout: config.HTTPReadHeader,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("model", chat.Model()).
		WithField("provider", chat.Provider().String()).
		Info("Initialization complete")
	return app, nil
}

func newArchiver(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*archive.Archiver, error) {
	client, err := archive.NewClient(ctx, archive.ClientConfig{
		Endpoint:    cfg.ArchiveEndpointURL(),
		AccessKeyID: cfg.ArchiveAccessKeyID,
		SecretKey:   cfg.ArchiveSecretAccessKey,
		BucketName:  cfg.ArchiveBucketName,
	})
	if err != nil {
		return nil, err
	}
	return archive.New(archive.Config{
		Store:   client,
		Prefix:  cfg.ArchivePrefix,
		Metrics: m,
		Logger:  log,
	})
}

// buildLLMConfig creates an LLMConfig from the application config.
func buildLLMConfig(cfg *config.Config) genai.LLMConfig {
	llmCfg := genai.DefaultLLMConfig()

	llmCfg.OpenAI.APIKey = cfg.OpenAIAPIKey
	llmCfg.Gemini.APIKey = cfg.GeminiAPIKey
	llmCfg.Groq.APIKey = cfg.GroqAPIKey

	if cfg.OpenAIBaseURL != "" {
		llmCfg.OpenAI.BaseURL = cfg.OpenAIBaseURL
	}
	if len(cfg.OpenAIModels) > 0 {
		llmCfg.OpenAI.Models = cfg.OpenAIModels
	}
	if len(cfg.GeminiModels) > 0 {
		llmCfg.Gemini.Models = cfg.GeminiModels
	}
	if len(cfg.GroqModels) > 0 {
		llmCfg.Groq.Models = cfg.GroqModels
	}
	if providers := genai.ParseProviders(cfg.LLMProviders); len(providers) > 0 {
		llmCfg.Providers = providers
	}

	return llmCfg
}

// setupRouter builds the gin engine. Split from Initialize so tests can wire
// fakes behind the real routes.
func (a *Application) setupRouter() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentryMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsAuthEnabled, a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(noStoreMiddleware())

	chat := api.Group("/chat")
	chat.POST("", a.rateLimitMiddleware(), a.handleTurn)
	chat.GET("", a.handleSessionStatusQuery)
	chat.GET("/sessions/:id", a.handleSessionStatus)
	chat.GET("/sessions/:id/validate", a.handleValidate)
	chat.POST("/sessions/:id/complete", a.handleComplete)
	chat.POST("/sessions/:id/reset", a.handleReset)
	chat.DELETE("/sessions/:id", a.handleDelete)

	events := api.Group("/events")
	events.GET("", a.handleListEvents)
	events.GET("/:id", a.handleGetEvent)
	events.GET("/:id/ics", a.handleEventCalendar)

	a.router = router
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	body := gin.H{
		"status":   "ready",
		"database": "connected",
		"sessions": a.sessions.Count(),
		"features": gin.H{
			"archive": a.archiver != nil,
			"sentry":  sentry.IsEnabled(),
		},
	}
	if count, err := a.db.CountEvents(ctx); err == nil {
		body["events"] = count
	} else {
		a.logger.WithError(err).Warn("Failed to count events for readiness")
	}
	c.JSON(http.StatusOK, body)
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence:
//  1. Receive shutdown signal (SIGINT/SIGTERM)
//  2. Cancel context to stop background jobs
//  3. Wait for background jobs to complete
//  4. Stop the HTTP server, then close resources
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()

	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.updateGaugeMetrics(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops accepting requests, waits for in-flight turns, then closes
// resources. Called after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")
	a.closeResources()

	sentry.Flush(2 * time.Second)

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func (a *Application) closeResources() {
	if a.chatModel != nil {
		if err := a.chatModel.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "chat_model").Error("Component close error")
		}
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "archive").Error("Component close error")
		}
	}
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		}
	}
	if a.clientLimiter != nil {
		a.clientLimiter.Stop()
	}
}

// updateGaugeMetrics periodically refreshes gauges that are not updated on
// every request.
func (a *Application) updateGaugeMetrics(ctx context.Context) {
	a.logger.Debug("Gauge metrics job started")
	defer a.logger.Debug("Gauge metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Gauge metrics received shutdown signal")
			return
		case <-ticker.C:
			a.recordGaugeMetrics()
		}
	}
}

func (a *Application) recordGaugeMetrics() {
	if a.metrics == nil {
		return
	}
	a.sessions.Sweep()
	a.metrics.SetSessionsActive(a.sessions.Count())
	a.metrics.SetRateLimiterClients(clientLimiterName, a.clientLimiter.ActiveCount())
}
