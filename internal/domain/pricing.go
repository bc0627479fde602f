package domain

import "fmt"

// PricingRates are the configurable inputs to the pricing calculator. Tax is
// in basis points (1800 = 18%); threshold and fee are minor-unit amounts.
type PricingRates struct {
	TaxRateBP             int64
	FreeShippingThreshold int64
	ShippingFee           int64
}

// Totals is the monetary breakdown of an order, in minor units.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// ApplyBasisPoints multiplies an amount by a basis-point rate, rounding
// half-up at the minor unit. Every percentage computation in the checkout
// path goes through this one helper so a pre-check and a commit-time
// recomputation can never disagree on rounding.
func ApplyBasisPoints(amount, bp int64) int64 {
	if amount <= 0 || bp <= 0 {
		return 0
	}
	return (amount*bp + 5000) / 10000
}

// FormatAmount renders a minor-unit amount as a decimal string for
// user-facing messages, e.g. 212400 -> "2124.00".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// ComputeTotals derives tax, shipping and total from a subtotal and a
// discount. Tax is levied on the post-discount base; shipping is waived once
// the subtotal reaches the free-shipping threshold.
func ComputeTotals(subtotal, discount int64, rates PricingRates) Totals {
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	tax := ApplyBasisPoints(subtotal-discount, rates.TaxRateBP)
	var shipping int64
	if subtotal < rates.FreeShippingThreshold {
		shipping = rates.ShippingFee
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping - discount,
	}
}
