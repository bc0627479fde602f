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

// OrderLineInput is one client-submitted checkout line. It carries no price:
// pricing is recomputed from the catalog at commit time.
type OrderLineInput struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gte=1"`
	Selection domain.Selection `json:"selection"`
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	Items           []OrderLineInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress domain.Address   `json:"shipping_address" validate:"required"`
	PaymentMethod   string           `json:"payment_method" validate:"required"`
	CouponCode      string           `json:"coupon_code"`
	IdempotencyKey  string           `json:"idempotency_key"`
}

// OrderService implements order creation and lifecycle operations.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	coupons  *CouponService
	carts    repository.CartRepository
	producer *event.Producer
	logger   *slog.Logger
	rates    domain.PricingRates
	currency string
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	coupons *CouponService,
	carts repository.CartRepository,
	producer *event.Producer,
	logger *slog.Logger,
	rates domain.PricingRates,
	currency string,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		coupons:  coupons,
		carts:    carts,
		producer: producer,
		logger:   logger,
		rates:    rates,
		currency: currency,
	}
}

// CreateOrder materializes an order: re-prices every line from the catalog,
// re-validates the coupon against the authoritative subtotal, and commits
// the snapshot together with the stock and coupon-usage updates in one
// transaction. A repeated idempotency key returns the original order.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user id is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("payment method must be one of %v", domain.ValidPaymentMethods()))
	}
	for _, line := range input.Items {
		if line.ProductID == "" {
			return nil, apperrors.InvalidInput("product id is required on every line")
		}
		if line.Quantity <= 0 {
			return nil, apperrors.InvalidInput("quantity must be greater than 0 on every line")
		}
	}

	if input.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, userID, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
	}

	items, subtotal, err := s.priceLines(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	// Coupon re-validation against the authoritative subtotal. A coupon that
	// was acceptable at pre-check but no longer is gets dropped rather than
	// failing the checkout; the order proceeds at full price.
	var (
		discount int64
		coupon   *domain.Coupon
	)
	if input.CouponCode != "" {
		validation, err := s.coupons.Validate(ctx, userID, input.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		if validation.Valid {
			discount = validation.DiscountAmount
			coupon = validation.Coupon
		} else {
			s.logger.WarnContext(ctx, "coupon no longer valid at checkout, proceeding without discount",
				slog.String("user_id", userID),
				slog.String("code", domain.NormalizeCode(input.CouponCode)),
				slog.String("reason", validation.Reason),
			)
		}
	}

	totals := domain.ComputeTotals(subtotal, discount, s.rates)

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		Items:           items,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		TotalAmount:     totals.Total,
		Currency:        s.currency,
		ShippingAddress: &input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		IdempotencyKey:  input.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}

	couponID := ""
	if coupon != nil {
		couponID = coupon.ID
	}

	if err := s.orders.Create(ctx, order, couponID); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) && input.IdempotencyKey != "" {
			// Lost the idempotency race; the winner's order is the answer.
			return s.orders.GetByIdempotencyKey(ctx, userID, input.IdempotencyKey)
		}
		return nil, err
	}

	// The cart served its purpose; clearing it is best-effort.
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after checkout",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if coupon != nil {
		if err := s.producer.PublishCouponRedeemed(ctx, coupon, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish coupon.redeemed event",
				slog.String("coupon_id", coupon.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
		slog.Int64("total_amount", order.TotalAmount),
		slog.String("coupon_code", order.CouponCode),
	)

	return order, nil
}

// priceLines resolves every input line against the catalog: authoritative
// unit price, resolved selection, and an early stock sanity check. Lines
// with the same product and canonical selection merge. The returned subtotal
// is computed from catalog prices only.
func (s *OrderService) priceLines(ctx context.Context, lines []OrderLineInput) ([]domain.OrderItem, int64, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load products: %w", err)
	}

	var (
		items    []domain.OrderItem
		subtotal int64
		byKey    = make(map[string]int)
	)

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, 0, apperrors.NotFound("product", line.ProductID)
		}

		selection := line.Selection
		if len(selection) == 0 {
			selection = domain.DefaultSelection(product.Variants)
		} else if err := domain.ValidateSelection(selection, product.Variants); err != nil {
			return nil, 0, apperrors.InvalidInput(err.Error())
		}

		key := line.ProductID + "|" + selection.Canonical()
		if idx, ok := byKey[key]; ok {
			items[idx].Quantity += line.Quantity
		} else {
			byKey[key] = len(items)
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				SKU:       product.SKU,
				Selection: selection,
				Price:     product.Price,
				Quantity:  line.Quantity,
			})
		}
	}

	// Early reject on obviously short stock. The conditional decrement in
	// the transaction remains the authoritative guard.
	perProduct := make(map[string]int, len(products))
	for _, item := range items {
		perProduct[item.ProductID] += item.Quantity
		subtotal += item.LineTotal()
	}
	for productID, qty := range perProduct {
		if product := products[productID]; qty > product.Stock {
			return nil, 0, apperrors.InsufficientStock(productID, product.Stock)
		}
	}

	return items, subtotal, nil
}

// GetOrder retrieves an order, enforcing ownership when requestingUserID is
// non-empty. Admin callers pass an empty requesting user.
func (s *OrderService) GetOrder(ctx context.Context, id, requestingUserID string) (*domain.Order, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if requestingUserID != "" && order.UserID != requestingUserID {
		return nil, apperrors.Forbidden("order belongs to another user")
	}

	return order, nil
}

// ListOrders returns orders matching the filter with the total count.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Status != nil && !domain.IsValidStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *filter.Status))
	}
	return s.orders.List(ctx, filter)
}

// CancelOrder cancels an order on the customer's behalf. The repository
// guard makes the transition race-safe; cancellation does not restock.
func (s *OrderService) CancelOrder(ctx context.Context, id, requestingUserID string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id, requestingUserID)
	if err != nil {
		return nil, err
	}

	if !order.CanCancel() {
		return nil, apperrors.Conflict(fmt.Sprintf("order cannot be cancelled in status %s", order.Status))
	}

	if err := s.orders.Cancel(ctx, id); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCancelled

	if err := s.producer.PublishOrderCancelled(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", id),
		slog.String("user_id", order.UserID),
	)

	return order, nil
}

// UpdateStatus changes an order's status. Admin operation: any named status
// is accepted, terminal states excepted.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	if !domain.IsValidStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", status))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if domain.IsTerminalStatus(order.Status) {
		return nil, apperrors.Conflict(fmt.Sprintf("order is already %s", order.Status))
	}

	oldStatus := order.Status
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	order.Status = status

	if err := s.producer.PublishOrderStatusChanged(ctx, order, oldStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// UpdatePaymentStatus changes an order's payment status. Admin operation.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	if !domain.IsValidPaymentStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment status %q", status))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := s.orders.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, err
	}
	order.PaymentStatus = status

	return order, nil
}
