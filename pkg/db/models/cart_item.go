package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem holds a product snapshot taken when the product was first added.
// (cart_id, product_id) is unique.
type CartItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	ImageURL       string    `gorm:"column:image_url;not null;default:''"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotalCents returns quantity times the snapshotted unit price.
func (c CartItem) LineTotalCents() int64 {
	return int64(c.Quantity) * c.UnitPriceCents
}
