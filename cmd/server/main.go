package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/genesis/service/config"
	"github.com/brojonat/genesis/service/db"
	"github.com/brojonat/genesis/service/metrics"
	natspkg "github.com/brojonat/genesis/service/nats"
	"github.com/brojonat/genesis/service/server"
	"github.com/brojonat/genesis/service/session"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"provider", cfg.Provider,
		"network", cfg.Network,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	factory, closeProviders, err := newProviderFactory(cfg, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize wallet provider", "error", err)
		os.Exit(1)
	}
	defer closeProviders()

	var observers []session.Observer

	// The journal is optional; without DATABASE_URL the journal endpoint
	// reports that it is disabled.
	var journal server.JournalReader
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate journal", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database, journal enabled")

		journal = store
		observers = append(observers, db.NewJournalObserver(store, 5*time.Second, logger))
	}

	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)

		observers = append(observers, natspkg.NewEventObserver(natsPublisher, 5*time.Second, logger))
	}

	registry := session.NewRegistry(factory, session.Options{
		Network:      cfg.Network,
		HistoryLimit: cfg.HistoryLimit,
		Observers:    observers,
		Metrics:      metricsCollector,
		Logger:       logger,
	})

	httpServer := server.New(cfg.ServerAddr, registry, journal, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"journal", cfg.DatabaseURL != "",
		"nats", cfg.NATSURL != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
