package cart

import (
	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/money"
)

// addItemRequest mirrors the mobile client's add-to-cart body. Name and Price
// are accepted for compatibility; the catalog row is authoritative.
type addItemRequest struct {
	ProductID uuid.UUID     `json:"productId" validate:"required"`
	Name      string        `json:"name"`
	Price     *money.Amount `json:"price"`
	Quantity  *int          `json:"quantity" validate:"omitempty,min=1"`
}

func (r addItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
