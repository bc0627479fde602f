package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stitchkart/stitchkart/internal/domain"
	pkgkafka "github.com/stitchkart/stitchkart/pkg/kafka"
)

// Kafka topic constants for checkout domain events.
const (
	TopicCartUpdated        = "stitchkart.cart.updated"
	TopicCartCleared        = "stitchkart.cart.cleared"
	TopicOrderCreated       = "stitchkart.order.created"
	TopicOrderStatusChanged = "stitchkart.order.status_changed"
	TopicOrderCancelled     = "stitchkart.order.cancelled"
	TopicCouponRedeemed     = "stitchkart.coupon.redeemed"
)

// Aggregate type constants.
const (
	AggregateTypeCart   = "cart"
	AggregateTypeOrder  = "order"
	AggregateTypeCoupon = "coupon"
)

// Source identifier for events originating from the checkout service.
const SourceCheckout = "checkout-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID    string         `json:"user_id"`
	Items     []CartLineData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  int64          `json:"subtotal"`
	Currency  string         `json:"currency"`
}

// CartLineData is the line payload within cart events.
type CartLineData struct {
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	SKU       string           `json:"sku"`
	Selection domain.Selection `json:"selection,omitempty"`
	Price     int64            `json:"price"`
	Quantity  int              `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// OrderCreatedData is the payload for an order.created event (full order snapshot).
type OrderCreatedData struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	Status          string             `json:"status"`
	Items           []OrderItemData    `json:"items"`
	Subtotal        int64              `json:"subtotal"`
	Tax             int64              `json:"tax"`
	Shipping        int64              `json:"shipping"`
	Discount        int64              `json:"discount"`
	TotalAmount     int64              `json:"total_amount"`
	Currency        string             `json:"currency"`
	CouponCode      string             `json:"coupon_code,omitempty"`
	ShippingAddress *domain.Address    `json:"shipping_address,omitempty"`
	PaymentMethod   string             `json:"payment_method"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID        string           `json:"id"`
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	SKU       string           `json:"sku"`
	Selection domain.Selection `json:"selection,omitempty"`
	Price     int64            `json:"price"`
	Quantity  int              `json:"quantity"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderCancelledData is the payload for an order.cancelled event.
type OrderCancelledData struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// CouponRedeemedData is the payload for a coupon.redeemed event.
type CouponRedeemedData struct {
	CouponID       string `json:"coupon_id"`
	Code           string `json:"code"`
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	DiscountAmount int64  `json:"discount_amount"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartLineData, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = CartLineData{
			ProductID: line.ProductID,
			Name:      line.Name,
			SKU:       line.SKU,
			Selection: line.Selection,
			Price:     line.Price,
			Quantity:  line.Quantity,
		}
	}

	data := CartUpdatedData{
		UserID:    cart.UserID,
		Items:     items,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
		Currency:  cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.UserID, AggregateTypeCart, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	event, err := pkgkafka.NewEvent(TopicCartCleared, userID, AggregateTypeCart, SourceCheckout, CartClearedData{UserID: userID})
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	return nil
}

// PublishOrderCreated publishes an order.created event with the full snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	items := make([]OrderItemData, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemData{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Selection: item.Selection,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	data := OrderCreatedData{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Items:           items,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Discount:        o.Discount,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		CouponCode:      o.CouponCode,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, o.ID, AggregateTypeOrder, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, oldStatus string) error {
	data := OrderStatusChangedData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		OldStatus: oldStatus,
		NewStatus: o.Status,
	}

	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, o.ID, AggregateTypeOrder, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	return nil
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, o *domain.Order) error {
	data := OrderCancelledData{OrderID: o.ID, UserID: o.UserID}

	event, err := pkgkafka.NewEvent(TopicOrderCancelled, o.ID, AggregateTypeOrder, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create order.cancelled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCancelled, event); err != nil {
		return fmt.Errorf("publish order.cancelled event: %w", err)
	}

	return nil
}

// PublishCouponRedeemed publishes a coupon.redeemed event.
func (p *Producer) PublishCouponRedeemed(ctx context.Context, coupon *domain.Coupon, o *domain.Order) error {
	data := CouponRedeemedData{
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		OrderID:        o.ID,
		UserID:         o.UserID,
		DiscountAmount: o.Discount,
	}

	event, err := pkgkafka.NewEvent(TopicCouponRedeemed, coupon.ID, AggregateTypeCoupon, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create coupon.redeemed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCouponRedeemed, event); err != nil {
		return fmt.Errorf("publish coupon.redeemed event: %w", err)
	}

	return nil
}
