package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// Event is what domain code hands to Emit. Data is marshalled into the
// envelope's data section.
type Event struct {
	Type        enums.OutboxEventType
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Actor       *Actor
	Data        any
	OccurredAt  time.Time
}

type appender interface {
	Append(tx *gorm.DB, row *models.OutboxEvent) error
}

// Emitter records events in the caller's transaction so they commit or roll
// back with the change they describe.
type Emitter struct {
	store appender
	logg  *logger.Logger
	now   func() time.Time
}

func NewEmitter(store *Store, logg *logger.Logger) *Emitter {
	return &Emitter{store: store, logg: logg, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	switch {
	case tx == nil:
		return errTxRequired
	case !event.Type.IsValid():
		return fmt.Errorf("outbox: unknown event type %q", event.Type)
	case !event.Aggregate.IsValid():
		return fmt.Errorf("outbox: unknown aggregate type %q", event.Aggregate)
	case event.AggregateID == uuid.Nil:
		return errors.New("outbox: aggregate id required")
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("outbox: encode %s data: %w", event.Type, err)
	}
	now := e.now().UTC()
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.New(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("outbox: encode envelope: %w", err)
	}

	row := &models.OutboxEvent{
		ID:            env.EventID,
		EventType:     event.Type,
		AggregateType: event.Aggregate,
		AggregateID:   event.AggregateID,
		Payload:       payload,
		AvailableAt:   now,
	}
	if err := e.store.Append(tx, row); err != nil {
		return fmt.Errorf("outbox: append %s: %w", event.Type, err)
	}
	if e.logg != nil {
		e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
			"event_id":     row.ID.String(),
			"event_type":   row.EventType,
			"aggregate_id": row.AggregateID.String(),
		}), "outbox.event_queued")
	}
	return nil
}
