// Package cache implements the dedup gate event handlers consult to get
// at-most-once processing on top of at-least-once delivery.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventcache/internal/domain/record"
	"eventcache/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	firstSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_events_first_seen_total",
		Help: "The total number of occurrences acquired for processing",
	})
	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_events_duplicate_total",
		Help: "The total number of duplicate deliveries detected",
	})
	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_store_errors_total",
		Help: "The total number of failed store calls during TryAcquire",
	})
)

// Options is the validated, immutable configuration slice the cache needs.
type Options struct {
	Enabled      bool
	EntryTimeout time.Duration
}

// Cache is the single authoritative gate answering "should this occurrence
// be processed now?".
type Cache struct {
	opts  Options
	store store.RecordStore
	now   func() time.Time
}

func New(o Options, st store.RecordStore, opts ...Option) *Cache {
	c := &Cache{
		opts:  o,
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryAcquire reports whether the occurrence should be processed now.
// The first call for an occurrence returns true and persists a record; later
// calls return false until the record expires and is purged. Correctness
// under concurrent callers, including callers in other replicas, rests
// entirely on the store's atomic insert, never on an in-process lock.
//
// A store failure is returned as an error, not treated as "not a duplicate";
// whether to fail open or closed is the caller's decision.
func (c *Cache) TryAcquire(ctx context.Context, eventID, eventName string) (bool, error) {
	if !c.opts.Enabled {
		return true, nil
	}

	if eventID == "" {
		return false, errors.New("event id must not be empty")
	}

	rec := record.New(record.OccurrenceID(eventID, eventName), eventName, c.now(), c.opts.EntryTimeout)

	err := c.store.Insert(ctx, rec)
	switch {
	case err == nil:
		firstSeen.Inc()
		return true, nil
	case errors.Is(err, store.ErrDuplicateKey):
		duplicatesSkipped.Inc()
		slog.Debug("duplicate delivery detected", "event_id", eventID, "event_name", eventName)
		return false, nil
	default:
		storeErrors.Inc()
		return false, fmt.Errorf("dedup cache unavailable: %w", err)
	}
}
