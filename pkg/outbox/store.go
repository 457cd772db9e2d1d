package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
)

const maxErrorText = 2000

var errTxRequired = errors.New("outbox: transaction required")

// Store persists outbox rows and their dead letters. Every write takes the
// caller's transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.AvailableAt.IsZero() {
		row.AvailableAt = time.Now().UTC()
	}
	return tx.Create(row).Error
}

// waitingBehind matches rows whose aggregate has an older live event still
// waiting for its retry, so one order's events leave in emit order.
const waitingBehind = `EXISTS (
	SELECT 1 FROM outbox_events older
	WHERE older.aggregate_id = outbox_events.aggregate_id
	  AND older.published_at IS NULL
	  AND older.dead_lettered_at IS NULL
	  AND older.created_at < outbox_events.created_at
	  AND older.available_at > ?)`

// Claim locks up to limit live rows due at now, oldest first. Rows already
// locked by another relay are skipped rather than waited on.
func (s *Store) Claim(tx *gorm.DB, limit int, now time.Time) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND dead_lettered_at IS NULL AND available_at <= ?", now).
		Where("NOT "+waitingBehind, now).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return s.update(tx, id, map[string]any{
		"published_at": at,
		"last_error":   nil,
	})
}

// Reschedule records a failed attempt and hides the row until retryAt.
func (s *Store) Reschedule(tx *gorm.DB, id uuid.UUID, cause error, retryAt time.Time) error {
	return s.update(tx, id, map[string]any{
		"attempts":     gorm.Expr("attempts + 1"),
		"last_error":   errorText(cause),
		"available_at": retryAt,
	})
}

// Bury copies row into outbox_dead_letters and takes it out of rotation.
// row.Attempts is recorded as given.
func (s *Store) Bury(tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error, at time.Time) error {
	if tx == nil {
		return errTxRequired
	}
	text := errorText(cause)
	letter := models.OutboxDeadLetter{
		ID:            uuid.New(),
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		Reason:        reason,
		LastError:     text,
		Attempts:      row.Attempts,
		DeadAt:        at,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&letter).Error; err != nil {
		return err
	}
	return s.update(tx, row.ID, map[string]any{
		"attempts":         row.Attempts,
		"last_error":       text,
		"dead_lettered_at": at,
	})
}

func (s *Store) update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByAggregate returns every event recorded for the aggregate in emit order.
func (s *Store) ListByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// DeadLetterFor reports whether the event was abandoned, and why.
func (s *Store) DeadLetterFor(ctx context.Context, eventID uuid.UUID) (models.OutboxDeadLetter, bool, error) {
	var letter models.OutboxDeadLetter
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&letter).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.OutboxDeadLetter{}, false, nil
	case err != nil:
		return models.OutboxDeadLetter{}, false, err
	}
	return letter, true, nil
}

// DeletePublishedBefore removes at most limit delivered rows published
// before cutoff and returns how many went.
func (s *Store) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	oldest := tx.Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at ASC").
		Limit(limit)
	res := tx.Where("id IN (?)", oldest).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorText {
		msg = msg[:maxErrorText]
	}
	return msg
}
