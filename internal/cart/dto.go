package cart

import (
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/money"
	"github.com/google/uuid"
)

// CartItemDTO is one cart line with its add-time snapshot.
type CartItemDTO struct {
	ProductID      uuid.UUID    `json:"productId"`
	SellerID       uuid.UUID    `json:"sellerId"`
	Name           string       `json:"name"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	Price          money.Amount `json:"price"`
	UnitPriceCents int64        `json:"unitPriceCents"`
	Quantity       int          `json:"quantity"`
	LineTotalCents int64        `json:"lineTotalCents"`
}

// CartDTO is the buyer-facing cart view.
type CartDTO struct {
	ID         uuid.UUID     `json:"id"`
	BuyerID    uuid.UUID     `json:"buyerId"`
	Items      []CartItemDTO `json:"items"`
	ItemCount  int           `json:"itemCount"`
	TotalCents int64         `json:"totalCents"`
	Total      money.Amount  `json:"total"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// FromModel renders a cart with its items.
func FromModel(cart *models.Cart) *CartDTO {
	if cart == nil {
		return nil
	}
	view := &CartDTO{
		ID:        cart.ID,
		BuyerID:   cart.BuyerID,
		Items:     make([]CartItemDTO, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		line := item.LineTotalCents()
		view.Items = append(view.Items, CartItemDTO{
			ProductID:      item.ProductID,
			SellerID:       item.SellerID,
			Name:           item.Name,
			ImageURL:       item.ImageURL,
			Price:          money.FromCents(item.UnitPriceCents),
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: line,
		})
		view.ItemCount += item.Quantity
		view.TotalCents += line
	}
	view.Total = money.FromCents(view.TotalCents)
	return view
}
