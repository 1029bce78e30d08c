// Package consumer runs the event-handling loop that consults the dedup
// gate before invoking the business handler.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"eventcache/internal/cache"
	domainEvent "eventcache/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_processed_total",
		Help: "The total number of first-seen events handled",
	})
	eventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_skipped_total",
		Help: "The total number of duplicate deliveries skipped",
	})
	gateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_gate_failures_total",
		Help: "The total number of dedup gate failures",
	})
	handleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consumer_handle_duration_seconds",
		Help:    "Time taken to handle one first-seen event",
		Buckets: []float64{0.1, 0.5, 1, 2, 5},
	})
)

// maxRetries bounds how often one message is re-attempted before its offset
// is committed and the message dropped.
const maxRetries = 5

// MessageSource is the slice of the Kafka consumer the loop needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// HandlerFunc processes one first-seen event occurrence.
type HandlerFunc func(ctx context.Context, ev domainEvent.Message) error

type Loop struct {
	source       MessageSource
	gate         *cache.Cache
	handle       HandlerFunc
	failOpen     bool
	retryBackoff time.Duration
}

func NewLoop(source MessageSource, gate *cache.Cache, handle HandlerFunc, failOpen bool, opts ...Option) *Loop {
	l := &Loop{
		source:       source,
		gate:         gate,
		handle:       handle,
		failOpen:     failOpen,
		retryBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run fetches and processes messages until ctx is cancelled. A message is
// committed when processing succeeded or the delivery was a duplicate. A
// failing message is retried in place with bounded backoff; the loop never
// fetches the next message while an earlier one is unresolved, because
// committing a later offset would mark the failed one consumed. After the
// retries are exhausted the message is dropped and its offset committed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		msg, err := l.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to fetch message", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(1<<attempt) * l.retryBackoff
				slog.Info("retrying message", "attempt", attempt, "max", maxRetries, "backoff", backoff)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
			}

			processErr := l.ProcessMessage(ctx, msg)
			if processErr == nil {
				if err := l.source.CommitMessages(ctx, msg); err != nil {
					slog.Error("failed to commit kafka message", "error", err)
				}
				break
			}

			slog.Error("processing failed", "error", processErr)
			if attempt == maxRetries {
				slog.Error("dropping message after retries", "retries", maxRetries, "error", processErr)
				if err := l.source.CommitMessages(ctx, msg); err != nil {
					slog.Error("failed to commit dropped message", "error", err)
				}
			}
		}
	}
}

// ProcessMessage returns nil when the message should be committed. A gate
// failure in fail-closed mode returns the error so Run retries the same
// message before moving past it; re-attempting is safe because TryAcquire
// is idempotent.
func (l *Loop) ProcessMessage(ctx context.Context, msg kafka.Message) error {
	var ev domainEvent.Message
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Not our envelope (or corrupt). Commit and move on.
		slog.Error("failed to unmarshal event envelope", "error", err)
		return nil
	}

	proceed, err := l.gate.TryAcquire(ctx, ev.ID, ev.Type)
	if err != nil {
		gateFailures.Inc()
		if !l.failOpen {
			return err
		}
		slog.Warn("dedup gate unavailable, processing anyway", "event_id", ev.ID, "error", err)
		proceed = true
	}

	if !proceed {
		eventsSkipped.Inc()
		slog.Info("duplicate delivery skipped", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	started := time.Now()
	if err := l.handle(ctx, ev); err != nil {
		return fmt.Errorf("handle event %s: %w", ev.ID, err)
	}

	handleDuration.Observe(time.Since(started).Seconds())
	eventsProcessed.Inc()
	return nil
}
