// Package main is the entrypoint for the EduPulse API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edupulse/edupulse/internal/ai"
	"github.com/edupulse/edupulse/internal/analysis"
	"github.com/edupulse/edupulse/internal/api"
	"github.com/edupulse/edupulse/internal/api/handler"
	mw "github.com/edupulse/edupulse/internal/api/middleware"
	"github.com/edupulse/edupulse/internal/api/response"
	"github.com/edupulse/edupulse/internal/cache"
	"github.com/edupulse/edupulse/internal/config"
	"github.com/edupulse/edupulse/internal/credentials"
	"github.com/edupulse/edupulse/internal/lms"
	"github.com/edupulse/edupulse/internal/scheduler"
	"github.com/edupulse/edupulse/internal/store"
	syncsvc "github.com/edupulse/edupulse/internal/sync"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Local development convenience; production relies on real env vars.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Create store and pipeline services
	pgStore := store.NewPostgresStore(pool)

	resolver := credentials.NewResolver(pgStore, cfg.LMS.Principal, logger)
	lmsClient := lms.NewHTTPClient(cfg.LMS.Timeout)
	fetcher := syncsvc.NewFetcher(lmsClient, resolver, cfg.Sync.ShowAllTenants, logger)
	evaluator := analysis.NewEvaluator(pgStore, cfg.Sync.ForceRefresh)
	generator := analysis.NewGenerator(aiProvider, cfg.AI.MaxTokens, cfg.AI.InferenceTimeout)
	syncService := syncsvc.NewService(pgStore, redisCache, resolver, fetcher, evaluator, generator, cfg.Sync, logger)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:         healthHandler(pgStore, redisCache),
		TriggerSyncHandler:    handler.NewTriggerSyncHandler(syncService),
		PollJobHandler:        handler.NewPollJobHandler(pgStore, redisCache),
		TenantAnalysesHandler: handler.NewTenantAnalysesHandler(pgStore, redisCache),
		CreateKeyHandler:      handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:       handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:      handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start the cron scheduler
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.Timezone,
			cfg.Scheduler.MorningSpec, cfg.Scheduler.AfternoonSpec,
			syncService, logger)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newLogger builds the slog handler: JSON in production, a tinted console
// handler for development.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.Format == "console" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
