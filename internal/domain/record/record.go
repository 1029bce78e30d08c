package record

import "time"

// HandlingRecord marks one event occurrence as handled (Inbox pattern).
// Records are written exactly once and never mutated; their presence in the
// store is the sole source of truth for "already handled".
type HandlingRecord struct {
	ID         string    `json:"id"`
	EventName  string    `json:"event_name"`
	RecordedAt time.Time `json:"recorded_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// New builds a record expiring timeout after now. Timestamps are kept in UTC.
func New(id, eventName string, now time.Time, timeout time.Duration) *HandlingRecord {
	now = now.UTC()
	return &HandlingRecord{
		ID:         id,
		EventName:  eventName,
		RecordedAt: now,
		ExpiresAt:  now.Add(timeout),
	}
}

// Expired reports whether the record is eligible for cleanup at now.
func (r *HandlingRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// OccurrenceID derives the dedup key for one logical event occurrence.
// When an event name is present the key is scoped per name, so unrelated
// event types can reuse raw ids without colliding.
func OccurrenceID(eventID, eventName string) string {
	if eventName == "" {
		return eventID
	}
	return eventName + "::" + eventID
}
