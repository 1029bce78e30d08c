// Package cleanup removes expired handling records on a fixed interval,
// decoupled from the hot insertion path.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"eventcache/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_records_purged_total",
		Help: "The total number of expired records deleted",
	})
	deleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_delete_failures_total",
		Help: "The total number of failed deletes during cleanup passes",
	})
)

// ErrScanUnsupported is returned when the configured store cannot enumerate
// expired records (key-value backends expire entries on their own).
var ErrScanUnsupported = errors.New("store does not support expiry scans")

type Scheduler struct {
	store    store.RecordStore
	interval time.Duration
	enabled  bool
	now      func() time.Time
}

func NewScheduler(st store.RecordStore, interval time.Duration, enabled bool, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		interval: interval,
		enabled:  enabled,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until ctx is cancelled. Each tick executes one pass inline in
// the select loop, so passes never overlap. A disabled scheduler returns
// without ever ticking, and a store without expiry scans is logged once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.enabled {
		slog.Info("cleanup disabled, scheduler not starting")
		return nil
	}

	if _, ok := s.store.(store.ExpiryQuerier); !ok {
		slog.Info("cleanup unsupported for this backend, scheduler not starting")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("cleanup scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("cleanup pass failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single cleanup pass: find everything expired at the
// start of the pass, then delete record by record. One failed delete does
// not abort the batch; the record is retried on the next pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	querier, ok := s.store.(store.ExpiryQuerier)
	if !ok {
		return ErrScanUnsupported
	}

	expired, err := querier.FindExpired(ctx, s.now(), "")
	if err != nil {
		return err
	}

	for _, rec := range expired {
		if ctx.Err() != nil {
			// Partial deletion is safe, the rest is picked up next pass.
			return ctx.Err()
		}

		if err := s.store.DeleteByID(ctx, rec.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // already gone
			}
			deleteFailures.Inc()
			slog.Error("failed to delete expired record", "record_id", rec.ID, "error", err)
			continue
		}
		recordsPurged.Inc()
	}

	if len(expired) > 0 {
		slog.Info("cleanup pass finished", "expired", len(expired))
	}

	return nil
}
