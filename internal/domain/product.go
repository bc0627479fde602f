package domain

import "time"

// Product is the authoritative catalog record read by the checkout core:
// price and stock are the source of truth at commit time, variants hold the
// raw per-axis option data fed through NormalizeOptions.
type Product struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	SKU       string         `json:"sku"`
	Price     int64          `json:"price"`
	Stock     int            `json:"stock"`
	Variants  map[string]any `json:"variants,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
