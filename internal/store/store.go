// Package store defines the persistence contract the dedup cache relies on,
// independent of which concrete backend is configured.
package store

import (
	"context"
	"time"

	"eventcache/internal/domain/record"
)

// RecordStore persists handling records in a durable keyed backend.
//
// Insert is the atomicity primitive of the whole design: it must fail with
// ErrDuplicateKey when a record with the same id already exists, using the
// backend's own conditional-write guarantee. A separate exists-check followed
// by an insert is not an acceptable implementation.
type RecordStore interface {
	Insert(ctx context.Context, rec *record.HandlingRecord) error
	DeleteByID(ctx context.Context, id string) error
}

// ExpiryQuerier is the optional capability queryable backends implement on
// top of RecordStore. Key-value backends do not implement it; the cleanup
// scheduler degrades accordingly.
type ExpiryQuerier interface {
	// FindExpired returns records with ExpiresAt <= now, narrowed to one
	// event name when eventName is non-empty.
	FindExpired(ctx context.Context, now time.Time, eventName string) ([]*record.HandlingRecord, error)
}
