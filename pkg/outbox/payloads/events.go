package payloads

import (
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderLine is the per-line summary carried by order events.
type OrderLine struct {
	ProductID      uuid.UUID `json:"productId"`
	SellerID       uuid.UUID `json:"sellerId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
}

// OrderPlacedEvent is emitted once the order and its lines are persisted.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	BuyerID    uuid.UUID         `json:"buyerId"`
	PaymentRef string            `json:"paymentRef"`
	TotalCents int64             `json:"totalCents"`
	Status     enums.OrderStatus `json:"status"`
	SellerIDs  []uuid.UUID       `json:"sellerIds"`
	Lines      []OrderLine       `json:"lines"`
}

// OrderStatusChangedEvent is emitted when a seller moves an order.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	BuyerID        uuid.UUID         `json:"buyerId"`
	SellerID       uuid.UUID         `json:"sellerId"`
	PreviousStatus enums.OrderStatus `json:"previousStatus"`
	Status         enums.OrderStatus `json:"status"`
	EntriesUpdated int64             `json:"entriesUpdated"`
}

// OrderFanoutFailedEvent reports sellers whose worklists did not receive the order.
type OrderFanoutFailedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	BuyerID         uuid.UUID   `json:"buyerId"`
	FailedSellerIDs []uuid.UUID `json:"failedSellerIds"`
	Reason          string      `json:"reason,omitempty"`
}
