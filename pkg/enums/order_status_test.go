package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusUndelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusUndelivered, OrderStatusShipped, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for _, status := range orderStatuses {
		if status.IsTerminal() {
			assert.Emptyf(t, status.NextStatuses(), "terminal %s has successors", status)
		}
	}
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusUndelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestSellerSettableStatuses(t *testing.T) {
	assert.False(t, OrderStatusPending.IsSellerSettable())
	assert.False(t, OrderStatusPaid.IsSellerSettable())
	assert.True(t, OrderStatusShipped.IsSellerSettable())
	assert.True(t, OrderStatusDelivered.IsSellerSettable())
	assert.True(t, OrderStatusUndelivered.IsSellerSettable())
	assert.True(t, OrderStatusCancelled.IsSellerSettable())
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("Shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
	_, err = ParseOrderStatus("Refunded")
	assert.Error(t, err)
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleSeller.IsValid())
	assert.True(t, RoleBuyer.IsValid())
	assert.False(t, Role("admin").IsValid())
	assert.False(t, Role("Seller").IsValid())
}
