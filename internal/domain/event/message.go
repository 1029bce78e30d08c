package event

import (
	"encoding/json"
	"time"
)

// Message is the envelope delivered by the event bus.
// Payload is kept as raw JSON produced by the originating service; this
// module never looks inside it.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Producer   string          `json:"producer"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
