package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/event"
	"github.com/stitchkart/stitchkart/internal/repository"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerLine is the maximum quantity allowed for a single cart line.
	MaxQuantityPerLine = 100
	// MaxLinesPerCart is the maximum number of distinct lines allowed in a cart.
	MaxLinesPerCart = 50
)

// AddItemInput holds the parameters for adding an item to the cart. Price is
// deliberately absent: the unit price snapshot always comes from the catalog.
type AddItemInput struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gte=1"`
	Selection domain.Selection `json:"selection"`
}

// CartService implements the business logic for cart operations.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	coupons  *CouponService
	producer *event.Producer
	logger   *slog.Logger
	currency string
}

// NewCartService creates a new cart service.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	coupons *CouponService,
	producer *event.Producer,
	logger *slog.Logger,
	currency string,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		coupons:  coupons,
		producer: producer,
		logger:   logger,
		currency: currency,
	}
}

// GetCart retrieves the cart for a user. If no cart exists, returns an empty cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// AddItem adds an item to the user's cart. A line with the same product and
// canonical selection merges by increasing quantity; the merged quantity is
// checked against the product's current stock before any mutation. Uses
// optimistic locking to prevent lost updates on concurrent cart writes.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerLine))
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", input.ProductID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("product", input.ProductID)
	}

	selection := input.Selection
	if len(selection) == 0 {
		selection = domain.DefaultSelection(product.Variants)
	} else if err := domain.ValidateSelection(selection, product.Variants); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version

	if idx := cart.FindLineIndex(product.ID, selection); idx >= 0 {
		merged := cart.Items[idx].Quantity + input.Quantity
		if merged > product.Stock {
			return nil, apperrors.InsufficientStock(product.ID, product.Stock)
		}
		if merged > MaxQuantityPerLine {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerLine))
		}
		cart.Items[idx].Quantity = merged
		// Refresh the snapshot in case the catalog changed.
		cart.Items[idx].Price = product.Price
		cart.Items[idx].Name = product.Name
		cart.Items[idx].SKU = product.SKU
	} else {
		if input.Quantity > product.Stock {
			return nil, apperrors.InsufficientStock(product.ID, product.Stock)
		}
		if len(cart.Items) >= MaxLinesPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d lines", MaxLinesPerCart))
		}
		cart.Items = append(cart.Items, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			Selection: selection,
			Price:     product.Price,
			Quantity:  input.Quantity,
		})
	}

	if err := s.saveCart(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", product.ID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// RemoveItem removes a line from the cart. With a selection it removes
// exactly that line; without one it removes every line for the product, a
// broad fallback kept for clients that predate variant selections.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string, selection domain.Selection) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("get cart for remove: %w", err)
	}

	expectedVersion := cart.Version

	var remaining []domain.CartLine
	removed := 0
	if len(selection) > 0 {
		key := selection.Canonical()
		for _, line := range cart.Items {
			if line.ProductID == productID && line.Selection.Canonical() == key {
				removed++
				continue
			}
			remaining = append(remaining, line)
		}
	} else {
		for _, line := range cart.Items {
			if line.ProductID == productID {
				removed++
				continue
			}
			remaining = append(remaining, line)
		}
	}

	if removed == 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}

	cart.Items = remaining

	if err := s.saveCart(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("lines_removed", removed),
	)

	return cart, nil
}

// SetQuantity sets the quantity of a cart line. Zero or negative removes the
// line. Without a selection the operation applies only when the product has
// exactly one line; with several variant lines the request is ambiguous.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID string, selection domain.Selection, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity > MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerLine))
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("get cart for update: %w", err)
	}

	expectedVersion := cart.Version

	idx := -1
	if len(selection) > 0 {
		idx = cart.FindLineIndex(productID, selection)
	} else {
		lines := cart.LineIndexesForProduct(productID)
		switch len(lines) {
		case 0:
		case 1:
			idx = lines[0]
		default:
			return nil, apperrors.InvalidInput("product has multiple variant lines, a selection is required")
		}
	}
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}

	if quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("product", productID)
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		if quantity > product.Stock {
			return nil, apperrors.InsufficientStock(productID, product.Stock)
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].Price = product.Price
	}

	if err := s.saveCart(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "cart line quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// ApplyCoupon pre-checks a coupon against the cart's current subtotal and
// stores the code and discount on the cart. The stored amount is a client
// convenience only; checkout re-validates against server truth.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("get cart for coupon: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cannot apply a coupon to an empty cart")
	}

	expectedVersion := cart.Version

	validation, err := s.coupons.Validate(ctx, userID, code, cart.Subtotal())
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, RejectionError(validation)
	}

	cart.CouponCode = validation.Coupon.Code
	cart.CouponDiscount = validation.DiscountAmount

	if err := s.saveCart(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon applied to cart",
		slog.String("user_id", userID),
		slog.String("code", cart.CouponCode),
		slog.Int64("discount", cart.CouponDiscount),
	)

	return cart, nil
}

// RemoveCoupon clears any applied coupon from the cart.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("get cart for coupon removal: %w", err)
	}

	expectedVersion := cart.Version
	cart.CouponCode = ""
	cart.CouponDiscount = 0

	if err := s.saveCart(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	return cart, nil
}

// Clear removes the user's cart entirely.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

func (s *CartService) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) newEmptyCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []domain.CartLine{},
		Currency:  s.currency,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *CartService) saveCart(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	err := s.carts.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.Conflict("cart was modified concurrently, please retry")
		}
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartService) publishCartUpdated(ctx context.Context, cart *domain.Cart) {
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", cart.UserID),
			slog.String("error", err.Error()),
		)
	}
}
