package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/repository"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

func newCouponTestService(coupons *mockCouponRepository, orders *mockOrderRepository) *CouponService {
	return NewCouponService(coupons, orders, newTestLogger())
}

func activeCoupon() *domain.Coupon {
	now := time.Now().UTC()
	return &domain.Coupon{
		ID:                "coupon-001",
		Code:              "SAVE10",
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
	}
}

func TestCouponService_Validate_Success(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(activeCoupon(), nil)

	v, err := svc.Validate(context.Background(), "user-001", "  save10 ", 200000)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Reason)
	assert.Equal(t, int64(20000), v.DiscountAmount)
	require.NotNil(t, v.Coupon)
	assert.Equal(t, "coupon-001", v.Coupon.ID)
	coupons.AssertExpectations(t)
}

func TestCouponService_Validate_NotFound(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	coupons.On("GetByCode", mock.Anything, "NOPE").Return(nil, apperrors.NotFound("coupon", "NOPE"))

	v, err := svc.Validate(context.Background(), "user-001", "nope", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonNotFound, v.Reason)
}

func TestCouponService_Validate_NotYetValid(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ValidFrom = time.Now().UTC().Add(time.Hour)
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonNotYetValid, v.Reason)
}

func TestCouponService_Validate_Expired(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ValidUntil = time.Now().UTC().Add(-time.Hour)
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonExpired, v.Reason)
}

func TestCouponService_Validate_LimitReached(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.UsageLimit = 10
	c.UsedCount = 10
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonLimitReached, v.Reason)
}

func TestCouponService_Validate_ExpiredWinsOverLimit(t *testing.T) {
	// An expired exhausted coupon reports EXPIRED: the checks run in order.
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ValidUntil = time.Now().UTC().Add(-time.Hour)
	c.UsageLimit = 10
	c.UsedCount = 10
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.Equal(t, domain.CouponReasonExpired, v.Reason)
}

func TestCouponService_Validate_NewUsersOnly(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ApplicableTo = domain.ApplicableToNewUsers
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)
	orders.On("CountByUser", mock.Anything, "user-001").Return(3, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonNotEligible, v.Reason)
	orders.AssertExpectations(t)
}

func TestCouponService_Validate_ExistingUsersOnly(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ApplicableTo = domain.ApplicableToExistingUsers
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)
	orders.On("CountByUser", mock.Anything, "user-001").Return(3, nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 200000)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestCouponService_Validate_AnonymousUserRestrictedCoupon(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	c := activeCoupon()
	c.ApplicableTo = domain.ApplicableToNewUsers
	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(c, nil)

	v, err := svc.Validate(context.Background(), "", "SAVE10", 200000)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonNotEligible, v.Reason)
	orders.AssertNotCalled(t, "CountByUser", mock.Anything, mock.Anything)
}

func TestCouponService_Validate_BelowMinimum(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	coupons.On("GetByCode", mock.Anything, "SAVE10").Return(activeCoupon(), nil)

	v, err := svc.Validate(context.Background(), "user-001", "SAVE10", 99999)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CouponReasonBelowMinimum, v.Reason)
	assert.Contains(t, v.Message, "1000.00")
}

func TestCouponService_Validate_FixedCoupon(t *testing.T) {
	coupons := new(mockCouponRepository)
	orders := new(mockOrderRepository)
	svc := newCouponTestService(coupons, orders)

	now := time.Now().UTC()
	flat := &domain.Coupon{
		ID:                "coupon-002",
		Code:              "FLAT500",
		DiscountType:      domain.DiscountTypeFixed,
		DiscountValue:     50000,
		MinPurchaseAmount: 200000,
		ValidFrom:         now.Add(-time.Hour),
		ValidUntil:        now.Add(time.Hour),
		ApplicableTo:      domain.ApplicableToAll,
		IsActive:          true,
	}
	coupons.On("GetByCode", mock.Anything, "FLAT500").Return(flat, nil)

	t.Run("below minimum cites the threshold", func(t *testing.T) {
		v, err := svc.Validate(context.Background(), "user-001", "FLAT500", 150000)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, domain.CouponReasonBelowMinimum, v.Reason)
		assert.Contains(t, v.Message, "2000.00")
	})

	t.Run("flat amount above minimum", func(t *testing.T) {
		v, err := svc.Validate(context.Background(), "user-001", "FLAT500", 250000)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, int64(50000), v.DiscountAmount)
	})
}

func TestCouponService_Validate_EmptyCode(t *testing.T) {
	svc := newCouponTestService(new(mockCouponRepository), new(mockOrderRepository))

	_, err := svc.Validate(context.Background(), "user-001", "   ", 200000)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRejectionError_StatusMapping(t *testing.T) {
	tests := []struct {
		reason     string
		wantStatus int
	}{
		{domain.CouponReasonNotFound, http.StatusNotFound},
		{domain.CouponReasonExpired, http.StatusGone},
		{domain.CouponReasonLimitReached, http.StatusConflict},
		{domain.CouponReasonNotEligible, http.StatusUnprocessableEntity},
		{domain.CouponReasonBelowMinimum, http.StatusUnprocessableEntity},
		{domain.CouponReasonNotYetValid, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			appErr := RejectionError(&domain.CouponValidation{Reason: tt.reason, Message: "m"})
			assert.Equal(t, tt.wantStatus, appErr.Status)
			assert.Equal(t, tt.reason, appErr.Code)
		})
	}
}

func TestCouponService_Create_Success(t *testing.T) {
	coupons := new(mockCouponRepository)
	svc := newCouponTestService(coupons, new(mockOrderRepository))

	coupons.On("Create", mock.Anything, mock.AnythingOfType("*domain.Coupon")).Return(nil)

	now := time.Now().UTC()
	coupon, err := svc.Create(context.Background(), CreateCouponInput{
		Code:          "welcome20",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 2000,
		ValidFrom:     now,
		ValidUntil:    now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME20", coupon.Code)
	assert.Equal(t, domain.ApplicableToAll, coupon.ApplicableTo)
	assert.True(t, coupon.IsActive)
	assert.NotEmpty(t, coupon.ID)
	coupons.AssertExpectations(t)
}

func TestCouponService_Create_InvalidInput(t *testing.T) {
	svc := newCouponTestService(new(mockCouponRepository), new(mockOrderRepository))
	now := time.Now().UTC()

	tests := []struct {
		name  string
		input CreateCouponInput
	}{
		{
			name: "percentage over 100",
			input: CreateCouponInput{
				Code: "BIG", DiscountType: domain.DiscountTypePercentage, DiscountValue: 10001,
				ValidFrom: now, ValidUntil: now.Add(time.Hour),
			},
		},
		{
			name: "window inverted",
			input: CreateCouponInput{
				Code: "BACK", DiscountType: domain.DiscountTypeFixed, DiscountValue: 5000,
				ValidFrom: now, ValidUntil: now.Add(-time.Hour),
			},
		},
		{
			name: "unknown discount type",
			input: CreateCouponInput{
				Code: "ODD", DiscountType: "bogo", DiscountValue: 5000,
				ValidFrom: now, ValidUntil: now.Add(time.Hour),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestCouponService_SetActive(t *testing.T) {
	coupons := new(mockCouponRepository)
	svc := newCouponTestService(coupons, new(mockOrderRepository))

	c := activeCoupon()
	c.IsActive = false
	coupons.On("SetActive", mock.Anything, "coupon-001", false).Return(nil)
	coupons.On("GetByID", mock.Anything, "coupon-001").Return(c, nil)

	coupon, err := svc.SetActive(context.Background(), "coupon-001", false)
	require.NoError(t, err)
	assert.False(t, coupon.IsActive)
	coupons.AssertExpectations(t)
}

func TestCouponService_List(t *testing.T) {
	coupons := new(mockCouponRepository)
	svc := newCouponTestService(coupons, new(mockOrderRepository))

	active := true
	filter := repository.CouponFilter{IsActive: &active, Page: 1, PerPage: 20}
	coupons.On("List", mock.Anything, filter).Return([]domain.Coupon{*activeCoupon()}, 1, nil)

	list, total, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
}
