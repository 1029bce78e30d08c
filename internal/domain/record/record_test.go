package record_test

import (
	"testing"
	"time"

	"eventcache/internal/domain/record"

	"github.com/stretchr/testify/assert"
)

func TestNewDerivesExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := record.New("OrderCreated::e1", "OrderCreated", now, 60*time.Second)

	assert.Equal(t, "OrderCreated::e1", rec.ID)
	assert.Equal(t, "OrderCreated", rec.EventName)
	assert.Equal(t, now, rec.RecordedAt)
	assert.Equal(t, now.Add(60*time.Second), rec.ExpiresAt)
}

func TestNewNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2025, 6, 1, 15, 0, 0, 0, loc)

	rec := record.New("e1", "", local, time.Minute)

	assert.Equal(t, time.UTC, rec.RecordedAt.Location())
	assert.True(t, rec.RecordedAt.Equal(local))
}

func TestExpiredBoundary(t *testing.T) {
	recordedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeout := 60 * time.Second
	rec := record.New("e1", "", recordedAt, timeout)

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"well before expiry", recordedAt.Add(10 * time.Second), false},
		{"one nanosecond before expiry", recordedAt.Add(timeout - time.Nanosecond), false},
		{"exactly at expiry", recordedAt.Add(timeout), true},
		{"after expiry", recordedAt.Add(timeout + time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, rec.Expired(tt.now))
		})
	}
}

func TestOccurrenceID(t *testing.T) {
	// Scoped per event name when one is present, so unrelated event types
	// can reuse raw ids.
	assert.Equal(t, "OrderCreated::e1", record.OccurrenceID("e1", "OrderCreated"))
	assert.Equal(t, "e1", record.OccurrenceID("e1", ""))
	assert.NotEqual(t,
		record.OccurrenceID("e1", "OrderCreated"),
		record.OccurrenceID("e1", "OrderCancelled"),
	)
}
