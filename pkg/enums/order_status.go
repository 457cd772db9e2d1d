package enums

import "slices"

// OrderStatus tracks the lifecycle of an order and of each seller's fan-out entries.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "Pending"
	OrderStatusPaid        OrderStatus = "Paid"
	OrderStatusShipped     OrderStatus = "Shipped"
	OrderStatusDelivered   OrderStatus = "Delivered"
	OrderStatusUndelivered OrderStatus = "Undelivered"
	OrderStatusCancelled   OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusUndelivered,
	OrderStatusCancelled,
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered, OrderStatusUndelivered, OrderStatusCancelled},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return slices.Contains(orderStatuses, s) }

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusUndelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsInitial reports whether an order may be created in this status.
func (s OrderStatus) IsInitial() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

// IsSellerSettable reports whether a seller may request this status.
// Pending and Paid are reserved for order creation.
func (s OrderStatus) IsSellerSettable() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusUndelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderStatusTransitions[s], next)
}

// NextStatuses lists the legal successors of s.
func (s OrderStatus) NextStatuses() []OrderStatus {
	return slices.Clone(orderStatusTransitions[s])
}

// ParseOrderStatus is exact: "shipped" is not a status.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(orderStatuses, "order status", value)
}
