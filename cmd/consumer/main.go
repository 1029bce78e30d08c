package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventcache/internal/application/factories/infrastructure"
	"eventcache/internal/cache"
	"eventcache/internal/config"
	"eventcache/internal/consumer"
	domainEvent "eventcache/internal/domain/event"
	"eventcache/internal/infrastructure/kafka"
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

	gate := cache.New(cache.Options{
		Enabled:      cfg.Cache.Enabled,
		EntryTimeout: cfg.Cache.EntryTimeout,
	}, recordStore)

	kafkaConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		StartLatest: cfg.Kafka.StartLatest,
	})
	defer kafkaConsumer.Close()

	loop := consumer.NewLoop(kafkaConsumer, gate, handleEvent, cfg.Consumer.FailOpen)

	logger.Info("event consumer started",
		"consumer", cfg.Consumer.Name,
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
		"cache_enabled", cfg.Cache.Enabled,
		"backend", cfg.Cache.Backend,
	)

	if err := loop.Run(ctx); err != nil {
		logger.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("consumer exited")
}

// handleEvent is where the business processing goes. The reference binary
// only logs the first-seen occurrence.
func handleEvent(_ context.Context, ev domainEvent.Message) error {
	slog.Info("event handled", "event_id", ev.ID, "type", ev.Type, "producer", ev.Producer)
	return nil
}
