package domain

import "time"

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

// Payment status constants.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment method constants. Only cash on delivery completes without a
// gateway; other methods stay payment-pending until an external callback.
const (
	PaymentMethodCOD  = "cash_on_delivery"
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
)

// Order represents a customer order. Its items and monetary fields are a
// frozen snapshot taken at creation time; only Status and PaymentStatus
// mutate afterward.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	Items           []OrderItem `json:"items"`
	Subtotal        int64       `json:"subtotal"`
	Tax             int64       `json:"tax"`
	Shipping        int64       `json:"shipping"`
	Discount        int64       `json:"discount"`
	TotalAmount     int64       `json:"total_amount"`
	Currency        string      `json:"currency"`
	CouponCode      string      `json:"coupon_code,omitempty"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentStatus   string      `json:"payment_status"`
	IdempotencyKey  string      `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Address represents a shipping address snapshot.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusReturned,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered ||
		status == OrderStatusCancelled ||
		status == OrderStatusReturned
}

// ValidPaymentStatuses returns all valid payment statuses.
func ValidPaymentStatuses() []string {
	return []string{
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
}

// IsValidPaymentStatus checks if a payment status string is valid.
func IsValidPaymentStatus(status string) bool {
	for _, s := range ValidPaymentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidPaymentMethods returns all accepted payment methods.
func ValidPaymentMethods() []string {
	return []string{PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI}
}

// IsValidPaymentMethod checks if a payment method string is accepted.
func IsValidPaymentMethod(method string) bool {
	for _, m := range ValidPaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// CanCancel reports whether the customer may still cancel the order: allowed
// until the order ships, and never from a terminal status.
func (o *Order) CanCancel() bool {
	if IsTerminalStatus(o.Status) {
		return false
	}
	return o.Status != OrderStatusShipped && o.Status != OrderStatusDelivered
}
