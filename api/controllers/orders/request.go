package orders

import (
	"github.com/google/uuid"

	internalorders "github.com/anucarts/marketplace-backend/internal/orders"
	"github.com/anucarts/marketplace-backend/pkg/money"
)

// orderItemRequest follows the mobile client's line shape. Price and
// itemTotalPrice are echoed by the client but ignored; the catalog price is
// authoritative.
type orderItemRequest struct {
	ProductID      uuid.UUID     `json:"productId" validate:"required"`
	SellerID       *uuid.UUID    `json:"sellerId"`
	Name           string        `json:"name"`
	Image          string        `json:"image"`
	Price          *money.Amount `json:"price"`
	ItemTotalPrice *money.Amount `json:"itemTotalPrice"`
	Quantity       int           `json:"quantity" validate:"required,min=1"`
}

// placeOrderRequest accepts the client's userId but the buyer is always the
// authenticated principal.
type placeOrderRequest struct {
	UserID          string             `json:"userId"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	OrderTotalPrice money.Amount       `json:"orderTotalPrice"`
	PaymentID       string             `json:"paymentId" validate:"required"`
	Status          string             `json:"status"`
}

func (r placeOrderRequest) toInput(buyerID uuid.UUID) internalorders.PlaceOrderInput {
	items := make([]internalorders.LineItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, internalorders.LineItemInput{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Name:      item.Name,
			ImageURL:  item.Image,
			Quantity:  item.Quantity,
		})
	}
	return internalorders.PlaceOrderInput{
		BuyerID:            buyerID,
		Items:              items,
		DeclaredTotalCents: r.OrderTotalPrice.Cents(),
		PaymentRef:         r.PaymentID,
		Status:             r.Status,
	}
}

type updateStatusRequest struct {
	OrderStatus string `json:"orderStatus" validate:"required"`
}
