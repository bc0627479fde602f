package domain

// OrderItem is one line of an order's immutable snapshot. Price is the
// authoritative unit price captured at commit time, never re-derived from
// the live catalog.
type OrderItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Selection Selection `json:"selection,omitempty"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
}

// LineTotal returns the total price for this line item.
func (i *OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}
