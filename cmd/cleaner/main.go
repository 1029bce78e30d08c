package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventcache/internal/application/factories/infrastructure"
	"eventcache/internal/cleanup"
	"eventcache/internal/config"
	"eventcache/internal/ops"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ops.Serve(":" + cfg.HTTP.Port)

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	recordStore, err := infraFactory.RecordStore(ctx)
	if err != nil {
		logger.Error("failed to init record store", "error", err)
		os.Exit(1)
	}

	sched := cleanup.NewScheduler(recordStore, cfg.Cache.CleanupInterval, cfg.Cache.CleanupEnabled)

	if err := sched.Run(ctx); err != nil {
		logger.Error("cleanup scheduler stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("cleaner exited")
}
