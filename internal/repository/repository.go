package repository

import (
	"context"

	"github.com/stitchkart/stitchkart/internal/domain"
)

// CouponFilter defines filter criteria for listing coupons.
type CouponFilter struct {
	IsActive *bool
	Page     int
	PerPage  int
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// ProductRepository reads the authoritative catalog record. Stock writes
// happen only inside the order-creation transaction (see OrderRepository).
type ProductRepository interface {
	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDs retrieves multiple products in one round trip, keyed by id.
	// Missing ids are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
}

// CouponRepository defines the interface for coupon persistence operations.
type CouponRepository interface {
	// Create inserts a new coupon into the store.
	Create(ctx context.Context, coupon *domain.Coupon) error

	// GetByCode retrieves an active coupon by its normalized code. Inactive
	// and unknown codes both return ErrNotFound.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// GetByID retrieves a coupon by its unique identifier regardless of
	// active state.
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)

	// List returns coupons matching the given filter along with the total count.
	List(ctx context.Context, filter CouponFilter) ([]domain.Coupon, int, error)

	// SetActive activates or deactivates a coupon.
	SetActive(ctx context.Context, id string, active bool) error
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create persists the order and its item snapshot in one transaction,
	// atomically incrementing the coupon usage counter (when couponID is
	// non-empty) and decrementing per-line stock with conditional updates.
	// A failed stock guard or coupon guard aborts the whole transaction.
	Create(ctx context.Context, order *domain.Order, couponID string) error

	// GetByID retrieves an order by its ID, eagerly loading its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByIdempotencyKey retrieves a user's order previously created with
	// the given idempotency key, or ErrNotFound.
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus changes the status of an order.
	UpdateStatus(ctx context.Context, id string, status string) error

	// UpdatePaymentStatus changes the payment status of an order.
	UpdatePaymentStatus(ctx context.Context, id string, status string) error

	// Cancel moves an order to cancelled with a conditional update that
	// fails once the order has shipped or reached a terminal status.
	Cancel(ctx context.Context, id string) error

	// CountByUser returns the number of orders the user has placed.
	CountByUser(ctx context.Context, userID string) (int, error)
}

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a user's cart, or ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveIfVersion persists the cart only if the stored version still
	// matches expectedVersion, bumping the version on success. Returns
	// ErrConflict when a concurrent write won.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) error

	// Delete removes a user's cart.
	Delete(ctx context.Context, userID string) error
}
