package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/campaigns"
	"voiceagent-platform/internal/compliance"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/control"
	"voiceagent-platform/internal/dispatch"
	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/internal/limiter"
	"voiceagent-platform/internal/sessions"
	"voiceagent-platform/internal/telephony"
	"voiceagent-platform/pkg/logger"
	"voiceagent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// appDeps carries everything the route layer needs.
type appDeps struct {
	cfg         config.Config
	authManager *auth.Manager
	provider    telephony.VoiceProvider
	registry    *sessions.Registry
	lifecycle   *calls.Lifecycle
	handlers    httpapi.Handlers
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; the runner injects real env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	provider, err := telephony.NewHTTPProvider(cfg.Provider)
	if err != nil {
		log.Error("provider init failed", "err", err)
		os.Exit(1)
	}

	// Stores and services.
	callStore := calls.NewPostgresStore(db)
	campaignStore := campaigns.NewPostgresStore(db)
	gateLoader := compliance.NewPostgresLoader(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	registry := sessions.NewRegistry()

	lim := limiter.NewRedisLimiter(rdb, limiter.FixedLimits(limiter.Limits{
		MaxConcurrent: cfg.Limits.MaxConcurrentCalls,
		PerMinute:     cfg.Limits.MaxCallsPerMinute,
	}))

	lifecycle := calls.NewLifecycle(callStore, registry, lim)

	dispatcher := dispatch.NewDispatcher(campaignStore, gateLoader, lim, provider, callStore, auditSvc, log)
	scheduler := campaigns.NewScheduler(campaignStore, dispatcher, log, campaigns.Options{
		TickBudget:       cfg.Scheduler.TickBudget,
		DefaultBatchSize: cfg.Scheduler.DefaultBatchSize,
		DeferThreshold:   cfg.Scheduler.DeferThreshold,
	})

	controlSvc := control.NewService(callStore, registry, provider, auditSvc, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, appDeps{
		cfg:         cfg,
		authManager: authManager,
		provider:    provider,
		registry:    registry,
		lifecycle:   lifecycle,
		handlers: httpapi.Handlers{
			Control:   controlSvc,
			Audit:     auditSvc,
			Scheduler: scheduler,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
