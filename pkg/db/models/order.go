package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/enums"
)

// Order is the authoritative record created at checkout. Only Status and
// FanoutComplete change after creation.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	PaymentRef     string            `gorm:"column:payment_ref;not null;uniqueIndex"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;default:'Pending'"`
	FanoutComplete bool              `gorm:"column:fanout_complete;not null;default:false"`
	LineItems      []OrderLineItem   `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
