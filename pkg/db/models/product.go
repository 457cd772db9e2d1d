package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog listing owned by a single seller.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	Stock       int       `gorm:"column:stock;not null;default:0"`
	ImageURL    string    `gorm:"column:image_url;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
