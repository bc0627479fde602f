package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/repository"
	"github.com/stitchkart/stitchkart/pkg/database"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const (
	// Guarded counter updates. RowsAffected == 0 means the guard lost:
	// either the coupon is out of uses or the product is out of stock, and
	// the surrounding transaction must abort with no residue.
	incrementCouponUsageQuery = `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

	decrementStockQuery = `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`
)

// Create persists the order and its item snapshot atomically. When couponID
// is non-empty the coupon usage counter is incremented first; each line then
// decrements stock with a conditional update. Any failed guard rolls back
// the entire transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order, couponID string) (err error) {
	ctx, done := database.TraceQuery(ctx, "order.create", "INSERT INTO orders")
	defer func() { done(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if couponID != "" {
		ct, execErr := tx.Exec(ctx, incrementCouponUsageQuery, couponID)
		if execErr != nil {
			err = fmt.Errorf("increment coupon usage: %w", execErr)
			return err
		}
		if ct.RowsAffected() == 0 {
			err = apperrors.CouponExhausted(o.CouponCode)
			return err
		}
	}

	for _, item := range o.Items {
		ct, execErr := tx.Exec(ctx, decrementStockQuery, item.Quantity, item.ProductID)
		if execErr != nil {
			err = fmt.Errorf("decrement stock for product %s: %w", item.ProductID, execErr)
			return err
		}
		if ct.RowsAffected() == 0 {
			var available int
			scanErr := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, item.ProductID).Scan(&available)
			if scanErr != nil {
				if errors.Is(scanErr, pgx.ErrNoRows) {
					err = apperrors.NotFound("product", item.ProductID)
					return err
				}
				err = fmt.Errorf("read stock for product %s: %w", item.ProductID, scanErr)
				return err
			}
			err = apperrors.InsufficientStock(item.ProductID, available)
			return err
		}
	}

	var shippingJSON []byte
	if o.ShippingAddress != nil {
		shippingJSON, err = json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshal shipping address: %w", err)
		}
	}

	orderQuery := `
		INSERT INTO orders (id, user_id, status, subtotal, tax, shipping, discount, total_amount, currency, coupon_code, shipping_address, payment_method, payment_status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserID,
		o.Status,
		o.Subtotal,
		o.Tax,
		o.Shipping,
		o.Discount,
		o.TotalAmount,
		o.Currency,
		o.CouponCode,
		shippingJSON,
		o.PaymentMethod,
		o.PaymentStatus,
		nullableString(o.IdempotencyKey),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Idempotency-key race: a concurrent retry committed first.
			err = apperrors.ErrAlreadyExists
			return err
		}
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, sku, selection, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, item := range o.Items {
		var selectionJSON []byte
		if len(item.Selection) > 0 {
			selectionJSON, err = json.Marshal(item.Selection)
			if err != nil {
				return fmt.Errorf("marshal item selection: %w", err)
			}
		}

		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.SKU,
			selectionJSON,
			item.Price,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const orderWithItemsQuery = `
	SELECT
		o.id, o.user_id, o.status, o.subtotal, o.tax, o.shipping, o.discount,
		o.total_amount, o.currency, o.coupon_code, o.shipping_address,
		o.payment_method, o.payment_status, o.created_at, o.updated_at,
		COALESCE(
			JSONB_AGG(
				JSONB_BUILD_OBJECT(
					'id', oi.id,
					'product_id', oi.product_id,
					'name', oi.name,
					'sku', oi.sku,
					'selection', oi.selection,
					'price', oi.price,
					'quantity', oi.quantity
				) ORDER BY oi.id
			) FILTER (WHERE oi.id IS NOT NULL),
			'[]'::jsonb
		) AS items
	FROM orders o
	LEFT JOIN order_items oi ON o.id = oi.order_id
	%s
	GROUP BY o.id, o.user_id, o.status, o.subtotal, o.tax, o.shipping,
		o.discount, o.total_amount, o.currency, o.coupon_code,
		o.shipping_address, o.payment_method, o.payment_status, o.created_at,
		o.updated_at`

// GetByID retrieves an order by its ID, eagerly loading its items.
// The LEFT JOIN + JSONB_AGG fetch avoids a second round trip for the items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(orderWithItemsQuery, "WHERE o.id = $1")
	return r.scanOrder(ctx, query, id)
}

// GetByIdempotencyKey retrieves the order a user previously created with the
// given idempotency key.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	query := fmt.Sprintf(orderWithItemsQuery, "WHERE o.user_id = $1 AND o.idempotency_key = $2")
	return r.scanOrder(ctx, query, userID, key)
}

func (r *OrderRepository) scanOrder(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	var (
		o            domain.Order
		shippingJSON []byte
		itemsJSON    []byte
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.Shipping,
		&o.Discount,
		&o.TotalAmount,
		&o.Currency,
		&o.CouponCode,
		&shippingJSON,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
		var addr domain.Address
		if err := json.Unmarshal(shippingJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
		o.ShippingAddress = &addr
	}

	if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
		}
	} else {
		o.Items = []domain.OrderItem{}
	}

	return &o, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, status, subtotal, tax, shipping, discount, total_amount, currency, coupon_code, shipping_address, payment_method, payment_status, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var (
			o            domain.Order
			shippingJSON []byte
		)

		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&o.Subtotal,
			&o.Tax,
			&o.Shipping,
			&o.Discount,
			&o.TotalAmount,
			&o.Currency,
			&o.CouponCode,
			&shippingJSON,
			&o.PaymentMethod,
			&o.PaymentStatus,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
			var addr domain.Address
			if err := json.Unmarshal(shippingJSON, &addr); err != nil {
				return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
			}
			o.ShippingAddress = &addr
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	// Batch-load items for all orders in a single query to avoid N+1.
	if len(orders) > 0 {
		orderIDs := make([]string, len(orders))
		for i := range orders {
			orderIDs[i] = orders[i].ID
		}

		itemsQuery := `
			SELECT id, order_id, product_id, name, sku, selection, price, quantity
			FROM order_items
			WHERE order_id = ANY($1)
			ORDER BY id`

		itemRows, err := r.pool.Query(ctx, itemsQuery, orderIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("batch load order items: %w", err)
		}
		defer itemRows.Close()

		itemsByOrderID := make(map[string][]domain.OrderItem, len(orders))
		for itemRows.Next() {
			var (
				item          domain.OrderItem
				selectionJSON []byte
			)
			if err := itemRows.Scan(
				&item.ID,
				&item.OrderID,
				&item.ProductID,
				&item.Name,
				&item.SKU,
				&selectionJSON,
				&item.Price,
				&item.Quantity,
			); err != nil {
				return nil, 0, fmt.Errorf("scan order item: %w", err)
			}
			if len(selectionJSON) > 0 && string(selectionJSON) != "null" {
				if err := json.Unmarshal(selectionJSON, &item.Selection); err != nil {
					return nil, 0, fmt.Errorf("unmarshal item selection: %w", err)
				}
			}
			itemsByOrderID[item.OrderID] = append(itemsByOrderID[item.OrderID], item)
		}
		if err := itemRows.Err(); err != nil {
			return nil, 0, fmt.Errorf("iterate batch order item rows: %w", err)
		}

		for i := range orders {
			if items, ok := itemsByOrderID[orders[i].ID]; ok {
				orders[i].Items = items
			} else {
				orders[i].Items = []domain.OrderItem{}
			}
		}
	}

	return orders, totalCount, nil
}

// UpdateStatus changes the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// UpdatePaymentStatus changes the payment status of an order.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status string) error {
	query := `
		UPDATE orders
		SET payment_status = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// Cancel moves an order to cancelled. The guard on current status makes the
// transition race-safe against a concurrent ship or a repeated cancel.
func (r *OrderRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5, $6, $7)`

	ct, err := r.pool.Exec(ctx, query,
		domain.OrderStatusCancelled,
		time.Now().UTC(),
		id,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
		domain.OrderStatusReturned,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var status string
		scanErr := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
		if scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return apperrors.NotFound("order", id)
			}
			return fmt.Errorf("read order status: %w", scanErr)
		}
		return apperrors.Conflict(fmt.Sprintf("order cannot be cancelled in status %s", status))
	}

	return nil
}

// CountByUser returns the number of orders the user has placed.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders by user: %w", err)
	}
	return count, nil
}

// nullableString maps "" to NULL so partial unique indexes ignore rows
// without a value.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
