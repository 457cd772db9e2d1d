package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem is a frozen copy of a purchased product line.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	ImageURL       string    `gorm:"column:image_url;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	Position       int       `gorm:"column:position;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
