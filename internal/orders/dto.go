package orders

import (
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/money"
	"github.com/google/uuid"
)

// LineItemInput is one requested line. SellerID, Name and ImageURL are
// optional hints; the product row is authoritative for seller and price.
type LineItemInput struct {
	ProductID uuid.UUID
	SellerID  *uuid.UUID
	Name      string
	ImageURL  string
	Quantity  int
}

// PlaceOrderInput carries a checkout request after transport decoding.
type PlaceOrderInput struct {
	BuyerID            uuid.UUID
	Items              []LineItemInput
	DeclaredTotalCents int64
	PaymentRef         string
	Status             string
}

// UpdateStatusInput carries a seller's status change request.
type UpdateStatusInput struct {
	OrderID  uuid.UUID
	SellerID uuid.UUID
	Status   string
}

// LineItemDTO mirrors the mobile client's order item shape.
type LineItemDTO struct {
	ProductID      uuid.UUID    `json:"productId"`
	SellerID       uuid.UUID    `json:"sellerId"`
	Name           string       `json:"name"`
	Image          string       `json:"image"`
	Quantity       int          `json:"quantity"`
	UnitPrice      money.Amount `json:"unitPrice"`
	UnitPriceCents int64        `json:"unitPriceCents"`
	ItemTotalPrice money.Amount `json:"itemTotalPrice"`
	ItemTotalCents int64        `json:"itemTotalCents"`
}

// OrderDTO is the API representation of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	Items           []LineItemDTO     `json:"items"`
	OrderTotalPrice money.Amount      `json:"orderTotalPrice"`
	OrderTotalCents int64             `json:"orderTotalCents"`
	PaymentID       string            `json:"paymentId"`
	Status          enums.OrderStatus `json:"status"`
	FanoutComplete  bool              `json:"fanoutComplete"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Scanned   int
	Completed int
}

func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]LineItemDTO, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		items = append(items, LineItemDTO{
			ProductID:      line.ProductID,
			SellerID:       line.SellerID,
			Name:           line.Name,
			Image:          line.ImageURL,
			Quantity:       line.Quantity,
			UnitPrice:      money.FromCents(line.UnitPriceCents),
			UnitPriceCents: line.UnitPriceCents,
			ItemTotalPrice: money.FromCents(line.LineTotalCents),
			ItemTotalCents: line.LineTotalCents,
		})
	}
	return &OrderDTO{
		ID:              order.ID,
		UserID:          order.BuyerID,
		Items:           items,
		OrderTotalPrice: money.FromCents(order.TotalCents),
		OrderTotalCents: order.TotalCents,
		PaymentID:       order.PaymentRef,
		Status:          order.Status,
		FanoutComplete:  order.FanoutComplete,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func fromModels(orders []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, *FromModel(&orders[i]))
	}
	return out
}
