package fanout

import (
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/money"
	"github.com/google/uuid"
)

// Entry is one order line addressed to a seller.
type Entry struct {
	OrderID        uuid.UUID
	BuyerID        uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	LineTotalCents int64
	Status         enums.OrderStatus
}

// EntryDTO is the seller-facing view of a fan-out entry.
type EntryDTO struct {
	ID             uuid.UUID         `json:"id"`
	SellerID       uuid.UUID         `json:"sellerId"`
	OrderID        uuid.UUID         `json:"orderId"`
	BuyerID        uuid.UUID         `json:"buyerId"`
	ProductID      uuid.UUID         `json:"productId"`
	Quantity       int               `json:"quantity"`
	LineTotal      money.Amount      `json:"lineTotal"`
	LineTotalCents int64             `json:"lineTotalCents"`
	Status         enums.OrderStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func toDTOs(rows []models.FanoutEntry) []EntryDTO {
	out := make([]EntryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, EntryDTO{
			ID:             row.ID,
			SellerID:       row.SellerID,
			OrderID:        row.OrderID,
			BuyerID:        row.BuyerID,
			ProductID:      row.ProductID,
			Quantity:       row.Quantity,
			LineTotal:      money.FromCents(row.LineTotalCents),
			LineTotalCents: row.LineTotalCents,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return out
}
