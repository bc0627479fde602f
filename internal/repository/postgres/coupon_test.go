package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/repository"
	"github.com/stitchkart/stitchkart/pkg/database"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

func newCouponTestRepo(t *testing.T) (*CouponRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewCouponRepository(mock)
	return repo, mock
}

func sampleCoupon() *domain.Coupon {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Coupon{
		ID:                "coupon-001",
		Code:              "SAVE10",
		Description:       "10% off",
		DiscountType:      domain.DiscountTypePercentage,
		DiscountValue:     1000,
		MinPurchaseAmount: 100000,
		MaxDiscountAmount: 100000,
		UsageLimit:        500,
		UsedCount:         10,
		ValidFrom:         now.Add(-24 * time.Hour),
		ValidUntil:        now.Add(24 * time.Hour),
		ApplicableTo:      domain.ApplicableToAll,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func couponRows(c *domain.Coupon) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "code", "description", "discount_type", "discount_value",
		"min_purchase_amount", "max_discount_amount", "usage_limit", "used_count",
		"valid_from", "valid_until", "applicable_to", "is_active", "created_at", "updated_at",
	}).AddRow(
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsedCount,
		c.ValidFrom, c.ValidUntil, c.ApplicableTo, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
}

func TestCouponRepository_Create_Success(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	c := sampleCoupon()
	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(
			c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue,
			c.MinPurchaseAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsedCount,
			c.ValidFrom, c.ValidUntil, c.ApplicableTo, c.IsActive,
			c.CreatedAt, c.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_Create_DuplicateCode(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	c := sampleCoupon()
	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(
			c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue,
			c.MinPurchaseAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsedCount,
			c.ValidFrom, c.ValidUntil, c.ApplicableTo, c.IsActive,
			c.CreatedAt, c.UpdatedAt,
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), c)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ALREADY_EXISTS", appErr.Code)
}

func TestCouponRepository_GetByCode_Success(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	c := sampleCoupon()
	mock.ExpectQuery("SELECT").
		WithArgs(c.Code).
		WillReturnRows(couponRows(c))

	got, err := repo.GetByCode(context.Background(), c.Code)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, int64(1000), got.DiscountValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByCode_NotFound(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("MISSING").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.GetByCode(context.Background(), "MISSING")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCouponRepository_List_ActiveOnly(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	c := sampleCoupon()
	rows := pgxmock.NewRows([]string{
		"id", "code", "description", "discount_type", "discount_value",
		"min_purchase_amount", "max_discount_amount", "usage_limit", "used_count",
		"valid_from", "valid_until", "applicable_to", "is_active", "created_at",
		"updated_at", "total_count",
	}).AddRow(
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.UsageLimit, c.UsedCount,
		c.ValidFrom, c.ValidUntil, c.ApplicableTo, c.IsActive, c.CreatedAt,
		c.UpdatedAt, 1,
	)

	active := true
	mock.ExpectQuery("SELECT").
		WithArgs(active, 20, 0).
		WillReturnRows(rows)

	coupons, total, err := repo.List(context.Background(), repository.CouponFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, coupons, 1)
	assert.Equal(t, "SAVE10", coupons[0].Code)
}

func TestCouponRepository_SetActive(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	mock.ExpectExec("UPDATE coupons").
		WithArgs(false, pgxmock.AnyArg(), "coupon-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetActive(context.Background(), "coupon-001", false)
	assert.NoError(t, err)
}

func TestCouponRepository_SetActive_NotFound(t *testing.T) {
	repo, mock := newCouponTestRepo(t)

	mock.ExpectExec("UPDATE coupons").
		WithArgs(true, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetActive(context.Background(), "missing", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
