package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/enums"
)

// SellerFanout is the per-seller worklist record, created lazily on the first
// order that touches the seller.
type SellerFanout struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID  uuid.UUID     `gorm:"column:seller_id;type:uuid;not null;uniqueIndex"`
	Entries   []FanoutEntry `gorm:"foreignKey:FanoutID;references:ID"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// FanoutEntry mirrors one order line in the owning seller's worklist.
// (order_id, product_id) is unique.
type FanoutEntry struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FanoutID       uuid.UUID         `gorm:"column:fanout_id;type:uuid;not null"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	ProductID      uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	LineTotalCents int64             `gorm:"column:line_total_cents;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
