package postgres

import (
	"context"
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

// CouponRepository implements repository.CouponRepository using PostgreSQL.
type CouponRepository struct {
	pool database.DBTX
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool database.DBTX) *CouponRepository {
	return &CouponRepository{pool: pool}
}

const couponColumns = `id, code, description, discount_type, discount_value,
	min_purchase_amount, max_discount_amount, usage_limit, used_count,
	valid_from, valid_until, applicable_to, is_active, created_at, updated_at`

// Create inserts a new coupon into the database.
func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, description, discount_type, discount_value,
			min_purchase_amount, max_discount_amount, usage_limit, used_count,
			valid_from, valid_until, applicable_to, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Code,
		c.Description,
		c.DiscountType,
		c.DiscountValue,
		c.MinPurchaseAmount,
		c.MaxDiscountAmount,
		c.UsageLimit,
		c.UsedCount,
		c.ValidFrom,
		c.ValidUntil,
		c.ApplicableTo,
		c.IsActive,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon", "code", c.Code)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

// GetByCode retrieves an active coupon by its normalized code. Inactive and
// unknown codes are indistinguishable to callers.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM coupons
		WHERE code = $1 AND is_active = TRUE`, couponColumns)

	return r.scanCoupon(ctx, query, code)
}

// GetByID retrieves a coupon by its ID regardless of active state.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM coupons
		WHERE id = $1`, couponColumns)

	return r.scanCoupon(ctx, query, id)
}

// List returns coupons matching the given filter with the total count.
func (r *CouponRepository) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM coupons
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		couponColumns, whereClause, argIndex, argIndex+1,
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
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var totalCount int
	coupons := make([]domain.Coupon, 0)

	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Description,
			&c.DiscountType,
			&c.DiscountValue,
			&c.MinPurchaseAmount,
			&c.MaxDiscountAmount,
			&c.UsageLimit,
			&c.UsedCount,
			&c.ValidFrom,
			&c.ValidUntil,
			&c.ApplicableTo,
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan coupon row: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coupon rows: %w", err)
	}

	return coupons, totalCount, nil
}

// SetActive activates or deactivates a coupon.
func (r *CouponRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE coupons
		SET is_active = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set coupon active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", id)
	}

	return nil
}

// scanCoupon is a helper that executes a query expected to return a single coupon row.
func (r *CouponRepository) scanCoupon(ctx context.Context, query string, args ...any) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinPurchaseAmount,
		&c.MaxDiscountAmount,
		&c.UsageLimit,
		&c.UsedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.ApplicableTo,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}

	return &c, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
