package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/repository"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

// CreateCouponInput holds the parameters for creating a coupon.
type CreateCouponInput struct {
	Code              string    `json:"code" validate:"required,min=3,max=32"`
	Description       string    `json:"description"`
	DiscountType      string    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue     int64     `json:"discount_value" validate:"required,gt=0"`
	MinPurchaseAmount int64     `json:"min_purchase_amount" validate:"gte=0"`
	MaxDiscountAmount int64     `json:"max_discount_amount" validate:"gte=0"`
	UsageLimit        int       `json:"usage_limit" validate:"gte=0"`
	ValidFrom         time.Time `json:"valid_from" validate:"required"`
	ValidUntil        time.Time `json:"valid_until" validate:"required"`
	ApplicableTo      string    `json:"applicable_to" validate:"omitempty,oneof=all new_users existing_users"`
}

// CouponService implements coupon validation and the admin coupon lifecycle.
type CouponService struct {
	coupons repository.CouponRepository
	orders  repository.OrderRepository
	logger  *slog.Logger
}

// NewCouponService creates a new coupon service.
func NewCouponService(coupons repository.CouponRepository, orders repository.OrderRepository, logger *slog.Logger) *CouponService {
	return &CouponService{
		coupons: coupons,
		orders:  orders,
		logger:  logger,
	}
}

// Validate runs a coupon code against a subtotal. The checks run in a fixed
// order and short-circuit at the first failure; the same function backs both
// the pre-check endpoint and commit-time re-validation, so the two can never
// disagree. It is read-only and safe to call concurrently.
func (s *CouponService) Validate(ctx context.Context, userID, code string, subtotal int64) (*domain.CouponValidation, error) {
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}
	if subtotal < 0 {
		return nil, apperrors.InvalidInput("subtotal must not be negative")
	}

	coupon, err := s.coupons.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &domain.CouponValidation{
				Reason:  domain.CouponReasonNotFound,
				Message: fmt.Sprintf("coupon %s not found", normalized),
			}, nil
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	now := time.Now().UTC()

	if now.Before(coupon.ValidFrom) {
		return &domain.CouponValidation{
			Reason:  domain.CouponReasonNotYetValid,
			Message: fmt.Sprintf("coupon %s is not valid before %s", coupon.Code, coupon.ValidFrom.Format(time.RFC3339)),
		}, nil
	}

	if now.After(coupon.ValidUntil) {
		return &domain.CouponValidation{
			Reason:  domain.CouponReasonExpired,
			Message: fmt.Sprintf("coupon %s expired on %s", coupon.Code, coupon.ValidUntil.Format(time.RFC3339)),
		}, nil
	}

	if !coupon.HasUsesLeft() {
		return &domain.CouponValidation{
			Reason:  domain.CouponReasonLimitReached,
			Message: fmt.Sprintf("coupon %s has reached its usage limit", coupon.Code),
		}, nil
	}

	if eligible, err := s.isEligible(ctx, userID, coupon); err != nil {
		return nil, err
	} else if !eligible {
		return &domain.CouponValidation{
			Reason:  domain.CouponReasonNotEligible,
			Message: fmt.Sprintf("coupon %s is limited to %s", coupon.Code, coupon.ApplicableTo),
		}, nil
	}

	if subtotal < coupon.MinPurchaseAmount {
		return &domain.CouponValidation{
			Reason:  domain.CouponReasonBelowMinimum,
			Message: fmt.Sprintf("coupon %s requires a minimum purchase of %s", coupon.Code, domain.FormatAmount(coupon.MinPurchaseAmount)),
		}, nil
	}

	return &domain.CouponValidation{
		Valid:          true,
		DiscountAmount: coupon.ComputeDiscount(subtotal),
		Coupon:         coupon,
	}, nil
}

// isEligible checks the coupon's audience restriction against the user's
// order history. Coupons open to all skip the lookup entirely.
func (s *CouponService) isEligible(ctx context.Context, userID string, coupon *domain.Coupon) (bool, error) {
	switch coupon.ApplicableTo {
	case "", domain.ApplicableToAll:
		return true, nil
	}

	if userID == "" {
		return false, nil
	}

	count, err := s.orders.CountByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count orders for eligibility: %w", err)
	}

	switch coupon.ApplicableTo {
	case domain.ApplicableToNewUsers:
		return count == 0, nil
	case domain.ApplicableToExistingUsers:
		return count > 0, nil
	default:
		return false, nil
	}
}

// RejectionError converts a failed validation into the AppError surfaced to
// clients, keeping the reason code stable.
func RejectionError(v *domain.CouponValidation) *apperrors.AppError {
	status := http.StatusUnprocessableEntity
	errSentinel := apperrors.ErrInvalidInput

	switch v.Reason {
	case domain.CouponReasonNotFound:
		status = http.StatusNotFound
		errSentinel = apperrors.ErrNotFound
	case domain.CouponReasonExpired:
		status = http.StatusGone
		errSentinel = apperrors.ErrGone
	case domain.CouponReasonLimitReached:
		status = http.StatusConflict
		errSentinel = apperrors.ErrConflict
	}

	return &apperrors.AppError{
		Code:    v.Reason,
		Message: v.Message,
		Status:  status,
		Err:     errSentinel,
	}
}

// Create inserts a new coupon. Admin operation.
func (s *CouponService) Create(ctx context.Context, input CreateCouponInput) (*domain.Coupon, error) {
	code := domain.NormalizeCode(input.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}
	if input.DiscountType != domain.DiscountTypePercentage && input.DiscountType != domain.DiscountTypeFixed {
		return nil, apperrors.InvalidInput("discount type must be percentage or fixed")
	}
	if input.DiscountValue <= 0 {
		return nil, apperrors.InvalidInput("discount value must be greater than 0")
	}
	if input.DiscountType == domain.DiscountTypePercentage && input.DiscountValue > 10000 {
		return nil, apperrors.InvalidInput("percentage discount must not exceed 10000 basis points")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, apperrors.InvalidInput("valid_until must be after valid_from")
	}

	applicableTo := input.ApplicableTo
	if applicableTo == "" {
		applicableTo = domain.ApplicableToAll
	}
	valid := false
	for _, a := range domain.ValidApplicability() {
		if a == applicableTo {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperrors.InvalidInput("applicable_to must be one of all, new_users, existing_users")
	}

	now := time.Now().UTC()
	coupon := &domain.Coupon{
		ID:                uuid.NewString(),
		Code:              code,
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MinPurchaseAmount: input.MinPurchaseAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		UsageLimit:        input.UsageLimit,
		UsedCount:         0,
		ValidFrom:         input.ValidFrom.UTC(),
		ValidUntil:        input.ValidUntil.UTC(),
		ApplicableTo:      applicableTo,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.coupons.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon created",
		slog.String("coupon_id", coupon.ID),
		slog.String("code", coupon.Code),
		slog.String("discount_type", coupon.DiscountType),
	)

	return coupon, nil
}

// List returns coupons matching the filter with the total count. Admin operation.
func (s *CouponService) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error) {
	return s.coupons.List(ctx, filter)
}

// SetActive activates or deactivates a coupon. Admin operation.
func (s *CouponService) SetActive(ctx context.Context, id string, active bool) (*domain.Coupon, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("coupon id is required")
	}

	if err := s.coupons.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("coupon", id)
		}
		return nil, err
	}

	coupon, err := s.coupons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload coupon: %w", err)
	}

	s.logger.InfoContext(ctx, "coupon active state changed",
		slog.String("coupon_id", id),
		slog.Bool("active", active),
	)

	return coupon, nil
}
