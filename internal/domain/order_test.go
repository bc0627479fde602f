package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStatuses_ContainsAll(t *testing.T) {
	expected := []string{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusReturned,
	}
	assert.ElementsMatch(t, expected, ValidStatuses())
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s), "expected %q to be valid", s)
	}
	assert.False(t, IsValidStatus("unknown"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("PENDING"))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(OrderStatusDelivered))
	assert.True(t, IsTerminalStatus(OrderStatusCancelled))
	assert.True(t, IsTerminalStatus(OrderStatusReturned))
	assert.False(t, IsTerminalStatus(OrderStatusPending))
	assert.False(t, IsTerminalStatus(OrderStatusShipped))
}

func TestIsValidPaymentStatus(t *testing.T) {
	for _, s := range ValidPaymentStatuses() {
		assert.True(t, IsValidPaymentStatus(s))
	}
	assert.False(t, IsValidPaymentStatus("settled"))
}

func TestIsValidPaymentMethod(t *testing.T) {
	assert.True(t, IsValidPaymentMethod(PaymentMethodCOD))
	assert.True(t, IsValidPaymentMethod(PaymentMethodCard))
	assert.True(t, IsValidPaymentMethod(PaymentMethodUPI))
	assert.False(t, IsValidPaymentMethod("cheque"))
}

// ============================================================================
// Cancellation Rules
// ============================================================================

func TestCanCancel(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{OrderStatusPending, true},
		{OrderStatusConfirmed, true},
		{OrderStatusProcessing, true},
		{OrderStatusShipped, false},
		{OrderStatusDelivered, false},
		{OrderStatusCancelled, false},
		{OrderStatusReturned, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			o := &Order{Status: tt.status}
			assert.Equal(t, tt.want, o.CanCancel())
		})
	}
}

func TestOrderItem_LineTotal(t *testing.T) {
	item := &OrderItem{Price: 49900, Quantity: 3}
	assert.Equal(t, int64(149700), item.LineTotal())
}
