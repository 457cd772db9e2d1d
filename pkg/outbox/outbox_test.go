package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db/dbtest"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/outbox/payloads"
)

func statusChanged(orderID uuid.UUID) Event {
	return Event{
		Type:        enums.EventOrderStatusChanged,
		Aggregate:   enums.AggregateOrder,
		AggregateID: orderID,
		Actor:       &Actor{ID: uuid.New(), Role: enums.RoleSeller},
		Data: payloads.OrderStatusChangedEvent{
			OrderID: orderID,
			Status:  enums.OrderStatusShipped,
		},
	}
}

func emit(t *testing.T, conn *gorm.DB, emitter *Emitter, event Event) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, event)
	}))
}

func TestEmitStoresEnvelopeKeyedByEventID(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	orderID := uuid.New()

	emit(t, conn, NewEmitter(store, nil), statusChanged(orderID))

	rows, err := store.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, rows[0].EventType)
	assert.Zero(t, rows[0].Attempts)
	assert.Nil(t, rows[0].PublishedAt)

	var data payloads.OrderStatusChangedEvent
	env, err := DecodeEnvelope(rows[0].Payload, &data)
	require.NoError(t, err)
	assert.Equal(t, envelopeVersion, env.Version)
	assert.Equal(t, rows[0].ID, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, enums.RoleSeller, env.Actor.Role)
	assert.Equal(t, enums.OrderStatusShipped, data.Status)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	emitter := NewEmitter(store, nil)
	orderID := uuid.New()

	rollback := errors.New("rollback")
	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, emitter.Emit(context.Background(), tx, statusChanged(orderID)))
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	rows, err := store.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsBadEvents(t *testing.T) {
	conn := dbtest.Open(t)
	emitter := NewEmitter(NewStore(conn), nil)

	unknownType := statusChanged(uuid.New())
	unknownType.Type = "order_refunded"
	unknownAggregate := statusChanged(uuid.New())
	unknownAggregate.Aggregate = "cart"
	noAggregateID := statusChanged(uuid.Nil)

	for name, event := range map[string]Event{
		"unknown type":      unknownType,
		"unknown aggregate": unknownAggregate,
		"no aggregate id":   noAggregateID,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, emitter.Emit(context.Background(), conn, event))
		})
	}
	assert.ErrorIs(t, emitter.Emit(context.Background(), nil, statusChanged(uuid.New())), errTxRequired)
}

func appendRow(t *testing.T, conn *gorm.DB, store *Store, created, available time.Time) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     created,
		AvailableAt:   available,
	}
	require.NoError(t, store.Append(conn, &row))
	return row
}

func TestClaimSkipsSettledAndDeferredRows(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	second := appendRow(t, conn, store, now.Add(-time.Minute), now.Add(-time.Minute))
	first := appendRow(t, conn, store, now.Add(-time.Hour), now.Add(-time.Hour))
	deferred := appendRow(t, conn, store, now.Add(-2*time.Hour), now.Add(time.Minute))
	published := appendRow(t, conn, store, now.Add(-3*time.Hour), now.Add(-3*time.Hour))
	buried := appendRow(t, conn, store, now.Add(-4*time.Hour), now.Add(-4*time.Hour))
	require.NoError(t, store.MarkPublished(conn, published.ID, now))
	require.NoError(t, store.Bury(conn, buried, enums.DeadLetterPermanent, errors.New("bad"), now))

	rows, err := store.Claim(conn, 10, now)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids)
	assert.NotContains(t, ids, deferred.ID)

	rows, err = store.Claim(conn, 1, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
}

func TestClaimHoldsBackAggregateBehindRetry(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	placed := appendRow(t, conn, store, now.Add(-time.Hour), now.Add(-time.Hour))
	shipped := appendRow(t, conn, store, now.Add(-time.Minute), now.Add(-time.Minute))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", shipped.ID).
		Update("aggregate_id", placed.AggregateID).Error)
	require.NoError(t, store.Reschedule(conn, placed.ID, errors.New("unavailable"), now.Add(time.Minute)))

	rows, err := store.Claim(conn, 10, now)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = store.Claim(conn, 10, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, placed.ID, rows[0].ID)
	assert.Equal(t, shipped.ID, rows[1].ID)
}

func TestRescheduleCountsAttemptAndDefers(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := appendRow(t, conn, store, now, now)

	require.NoError(t, store.Reschedule(conn, row.ID, errors.New("unavailable"), now.Add(4*time.Second)))

	rows, err := store.Claim(conn, 10, now)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = store.Claim(conn, 10, now.Add(4*time.Second))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Attempts)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "unavailable", *rows[0].LastError)

	assert.ErrorIs(t, store.Reschedule(conn, uuid.New(), errors.New("x"), now), gorm.ErrRecordNotFound)
}

func TestBuryWritesOneDeadLetter(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := appendRow(t, conn, store, now, now)
	row.Attempts = 10

	require.NoError(t, store.Bury(conn, row, enums.DeadLetterExhausted, errors.New("deadline exceeded"), now))
	require.NoError(t, store.Bury(conn, row, enums.DeadLetterExhausted, errors.New("again"), now))

	letter, found, err := store.DeadLetterFor(context.Background(), row.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, enums.DeadLetterExhausted, letter.Reason)
	assert.Equal(t, "deadline exceeded", letter.LastError)
	assert.Equal(t, 10, letter.Attempts)
	assert.JSONEq(t, string(row.Payload), string(letter.Payload))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxDeadLetter{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, found, err = store.DeadLetterFor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeletePublishedBeforeKeepsLiveRows(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	var old []models.OutboxEvent
	for i := 0; i < 3; i++ {
		row := appendRow(t, conn, store, now.Add(-72*time.Hour), now.Add(-72*time.Hour))
		require.NoError(t, store.MarkPublished(conn, row.ID, cutoff.Add(-time.Duration(i+1)*time.Hour)))
		old = append(old, row)
	}
	recent := appendRow(t, conn, store, now, now)
	require.NoError(t, store.MarkPublished(conn, recent.ID, now))
	pending := appendRow(t, conn, store, now.Add(-72*time.Hour), now.Add(-72*time.Hour))

	deleted, err := store.DeletePublishedBefore(conn, cutoff, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	deleted, err = store.DeletePublishedBefore(conn, cutoff, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var left []models.OutboxEvent
	require.NoError(t, conn.Find(&left).Error)
	ids := []uuid.UUID{}
	for _, r := range left {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{recent.ID, pending.ID}, ids)

	_, err = store.DeletePublishedBefore(nil, cutoff, 2)
	assert.ErrorIs(t, err, errTxRequired)
}

func TestCatalogResolve(t *testing.T) {
	catalog, err := NewCatalog(config.PubSubConfig{OrdersTopic: "orders"})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, catalog.Topics())

	orderID := uuid.New()
	good := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderFanoutFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       json.RawMessage(`{"version":1,"eventId":"` + uuid.NewString() + `","data":{"orderId":"` + orderID.String() + `","failedSellerIds":[]}}`),
	}
	resolved, err := catalog.Resolve(good)
	require.NoError(t, err)
	assert.Equal(t, "orders", resolved.Route.Topic)
	data, ok := resolved.Data.(*payloads.OrderFanoutFailedEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, data.OrderID)

	mutate := func(fn func(*models.OutboxEvent)) models.OutboxEvent {
		row := good
		fn(&row)
		return row
	}
	for name, row := range map[string]models.OutboxEvent{
		"unknown type":  mutate(func(r *models.OutboxEvent) { r.EventType = "order_refunded" }),
		"wrong aggr":    mutate(func(r *models.OutboxEvent) { r.AggregateType = "cart" }),
		"no aggregate":  mutate(func(r *models.OutboxEvent) { r.AggregateID = uuid.Nil }),
		"not json":      mutate(func(r *models.OutboxEvent) { r.Payload = json.RawMessage(`{`) }),
		"null data":     mutate(func(r *models.OutboxEvent) { r.Payload = json.RawMessage(`{"version":1,"data":null}`) }),
		"mistyped data": mutate(func(r *models.OutboxEvent) { r.Payload = json.RawMessage(`{"version":1,"data":{"orderId":7}}`) }),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Resolve(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err))
		})
	}

	_, err = NewCatalog(config.PubSubConfig{OrdersTopic: " "})
	assert.Error(t, err)
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, err, Permanent(err))
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(base))
}
