package domain

import "time"

// Cart represents a shopping cart.
type Cart struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Items          []CartLine `json:"items"`
	CouponCode     string     `json:"coupon_code,omitempty"`
	CouponDiscount int64      `json:"coupon_discount,omitempty"`
	Currency       string     `json:"currency"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// CartLine is a single line in the cart. Its identity is the pair
// (ProductID, canonical variant selection); Price is a snapshot of the
// product price at the time the line was added.
type CartLine struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Selection Selection `json:"selection,omitempty"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
}

// Subtotal calculates the total price of all lines in the cart (in minor units).
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, line := range c.Items {
		total += line.Price * int64(line.Quantity)
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, line := range c.Items {
		count += line.Quantity
	}
	return count
}

// FindLineIndex returns the index of the cart line matching the given product
// and canonical selection. Returns -1 if not found. This provides O(n) search
// but centralizes the logic for easier optimization later.
func (c *Cart) FindLineIndex(productID string, selection Selection) int {
	key := selection.Canonical()
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Selection.Canonical() == key {
			return i
		}
	}
	return -1
}

// LineIndexesForProduct returns the indexes of every line for the given
// product, regardless of selection.
func (c *Cart) LineIndexesForProduct(productID string) []int {
	var idx []int
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			idx = append(idx, i)
		}
	}
	return idx
}
