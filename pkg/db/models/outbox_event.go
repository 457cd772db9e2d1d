package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/enums"
)

// OutboxEvent is a pending or delivered message written in the same
// transaction as the change it describes. A row is claimable while both
// PublishedAt and DeadLetteredAt are nil and AvailableAt has passed.
type OutboxEvent struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType      enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType  enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID    uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload        json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Attempts       int                       `gorm:"column:attempts;not null;default:0"`
	LastError      *string                   `gorm:"column:last_error"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	AvailableAt    time.Time                 `gorm:"column:available_at;not null"`
	PublishedAt    *time.Time                `gorm:"column:published_at"`
	DeadLetteredAt *time.Time                `gorm:"column:dead_lettered_at"`
}

// OutboxDeadLetter keeps a copy of an event the relay gave up on, with the
// reason, so it can be inspected and replayed by hand.
type OutboxDeadLetter struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Reason        enums.DeadLetterReason    `gorm:"column:reason;type:text;not null"`
	LastError     string                    `gorm:"column:last_error;not null"`
	Attempts      int                       `gorm:"column:attempts;not null"`
	DeadAt        time.Time                 `gorm:"column:dead_at;not null"`
}

func (OutboxDeadLetter) TableName() string { return "outbox_dead_letters" }
