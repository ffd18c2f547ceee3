package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/usecasehub/usecase-hub/internal/api"
	"github.com/usecasehub/usecase-hub/internal/auth"
	"github.com/usecasehub/usecase-hub/internal/catalog"
	"github.com/usecasehub/usecase-hub/internal/cleanup"
	"github.com/usecasehub/usecase-hub/internal/config"
	"github.com/usecasehub/usecase-hub/internal/fixtures"
	"github.com/usecasehub/usecase-hub/internal/storage"
	"github.com/usecasehub/usecase-hub/internal/telemetry"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting usecase-hub",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations")
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize Redis session store
	sessions, err := auth.NewRedisSessionStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("redis connected successfully")

	// Load the embedded fixture snapshot, with optional directory overlay
	fixtureLoader := fixtures.NewLoader()
	if err := fixtureLoader.LoadEmbedded(); err != nil {
		slog.Error("failed to load embedded fixtures", "error", err)
		os.Exit(1)
	}
	if cfg.Fixtures.Dir != "" {
		if err := fixtureLoader.LoadFromDir(cfg.Fixtures.Dir); err != nil {
			slog.Warn("failed to load fixture overrides", "dir", cfg.Fixtures.Dir, "error", err)
		}
	}
	slog.Info("fixture snapshot loaded", "use_cases", fixtureLoader.Count())

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start telemetry dispatcher
	dispatcher := telemetry.NewDispatcher(repo, cfg.Telemetry.QueueSize)
	dispatcher.Start(ctx)

	// Wire services
	catalogService := catalog.NewService(repo, fixtureLoader, dispatcher)
	identity := auth.NewService(repo, sessions, dispatcher, cfg.Auth)

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(repo, cfg.Cleanup.Interval, cfg.Telemetry.Retention)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, catalogService, identity, dispatcher, repo)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Drain queued telemetry before closing stores
	dispatcher.Close()

	if err := sessions.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("usecase-hub stopped")
}
