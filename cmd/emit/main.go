// emit publishes synthetic event envelopes, useful for exercising the dedup
// gate end to end. -dup re-sends each envelope to simulate duplicate
// deliveries from the transport.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"eventcache/internal/config"
	domainEvent "eventcache/internal/domain/event"
	"eventcache/internal/infrastructure/kafka"

	"github.com/google/uuid"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	count := flag.Int("count", 1, "number of distinct events to publish")
	eventType := flag.String("type", "OrderCreated", "event type stamped on the envelope")
	dup := flag.Int("dup", 0, "extra deliveries of each event")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	prod := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer prod.Close()

	for i := 0; i < *count; i++ {
		ev := domainEvent.Message{
			ID:         uuid.NewString(),
			Type:       *eventType,
			Producer:   "emit-tool",
			OccurredAt: time.Now().UTC(),
			Payload:    json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)),
		}

		value, err := json.Marshal(ev)
		if err != nil {
			logger.Error("failed to marshal envelope", "error", err)
			os.Exit(1)
		}

		for d := 0; d <= *dup; d++ {
			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := prod.SendMessage(sendCtx, []byte(ev.ID), value)
			cancel()
			if err != nil {
				logger.Error("failed to send event", "event_id", ev.ID, "error", err)
				os.Exit(1)
			}
		}

		logger.Info("event published", "event_id", ev.ID, "type", ev.Type, "deliveries", *dup+1)
	}
}
