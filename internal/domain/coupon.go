package domain

import (
	"strings"
	"time"
)

// Coupon discount type constants.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon eligibility constants.
const (
	ApplicableToAll           = "all"
	ApplicableToNewUsers      = "new_users"
	ApplicableToExistingUsers = "existing_users"
)

// Coupon validation rejection reasons, in check order.
const (
	CouponReasonNotFound     = "NOT_FOUND"
	CouponReasonNotYetValid  = "NOT_YET_VALID"
	CouponReasonExpired      = "EXPIRED"
	CouponReasonLimitReached = "LIMIT_REACHED"
	CouponReasonNotEligible  = "NOT_ELIGIBLE"
	CouponReasonBelowMinimum = "BELOW_MINIMUM"
)

// Coupon represents a discount code. For percentage coupons DiscountValue is
// in basis points (1000 = 10%); for fixed coupons it is a minor-unit amount.
// MaxDiscountAmount and UsageLimit use zero as "unset".
type Coupon struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Description       string    `json:"description,omitempty"`
	DiscountType      string    `json:"discount_type"`
	DiscountValue     int64     `json:"discount_value"`
	MinPurchaseAmount int64     `json:"min_purchase_amount"`
	MaxDiscountAmount int64     `json:"max_discount_amount,omitempty"`
	UsageLimit        int       `json:"usage_limit,omitempty"`
	UsedCount         int       `json:"used_count"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidUntil        time.Time `json:"valid_until"`
	ApplicableTo      string    `json:"applicable_to"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CouponValidation is the outcome of running a code against a subtotal.
// Exactly one of Valid or Reason is meaningful.
type CouponValidation struct {
	Valid          bool    `json:"valid"`
	Reason         string  `json:"reason,omitempty"`
	Message        string  `json:"message,omitempty"`
	DiscountAmount int64   `json:"discount_amount"`
	Coupon         *Coupon `json:"coupon,omitempty"`
}

// NormalizeCode returns the canonical stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{DiscountTypePercentage, DiscountTypeFixed}
}

// ValidApplicability returns the set of valid applicable_to values.
func ValidApplicability() []string {
	return []string{ApplicableToAll, ApplicableToNewUsers, ApplicableToExistingUsers}
}

// ComputeDiscount returns the discount this coupon grants on the given
// subtotal, in minor units. Percentage discounts are clamped to
// MaxDiscountAmount when set; every discount is clamped to the subtotal.
func (c *Coupon) ComputeDiscount(subtotal int64) int64 {
	var discount int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = ApplyBasisPoints(subtotal, c.DiscountValue)
		if c.MaxDiscountAmount > 0 && discount > c.MaxDiscountAmount {
			discount = c.MaxDiscountAmount
		}
	case DiscountTypeFixed:
		discount = c.DiscountValue
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// HasUsesLeft reports whether the coupon is under its usage limit.
func (c *Coupon) HasUsesLeft() bool {
	return c.UsageLimit == 0 || c.UsedCount < c.UsageLimit
}
