package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/enums"
)

const envelopeVersion = 1

// Actor is the principal whose request produced the event.
type Actor struct {
	ID   uuid.UUID  `json:"principalId"`
	Role enums.Role `json:"role,omitempty"`
}

// Envelope is the JSON document stored in outbox_events.payload and sent
// unchanged as the Pub/Sub message body.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload. When data is non-nil the envelope's
// data section is decoded into it.
func DecodeEnvelope(raw []byte, data any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return Envelope{}, fmt.Errorf("decode envelope data: %w", err)
		}
	}
	return env, nil
}
