package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stitchkart/stitchkart/internal/repository"
	"github.com/stitchkart/stitchkart/internal/service"
	"github.com/stitchkart/stitchkart/pkg/httputil"
	"github.com/stitchkart/stitchkart/pkg/middleware"
	"github.com/stitchkart/stitchkart/pkg/pagination"
	"github.com/stitchkart/stitchkart/pkg/validator"
)

// CouponHandler handles HTTP requests for coupon endpoints.
type CouponHandler struct {
	service *service.CouponService
	logger  *slog.Logger
}

// NewCouponHandler creates a new coupon HTTP handler.
func NewCouponHandler(svc *service.CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		service: svc,
		logger:  logger,
	}
}

// ValidateCouponRequest is the JSON request body for validating a coupon code.
type ValidateCouponRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal int64  `json:"subtotal" validate:"gte=0"`
}

// CreateCouponRequest is the JSON request body for creating a coupon.
type CreateCouponRequest struct {
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

// ValidateCoupon handles POST /api/v1/coupons/validate. A rejection is a
// 200 with valid=false and the reason; only malformed requests error.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	// Identity is optional here so that coupon checks work for anonymous
	// browsers; eligibility-restricted coupons then reject.
	userID := middleware.UserIDFromContext(r.Context())

	validation, err := h.service.Validate(r.Context(), userID, req.Code, req.Subtotal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: validation})
}

// CreateCoupon handles POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	coupon, err := h.service.Create(r.Context(), service.CreateCouponInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		ApplicableTo:      req.ApplicableTo,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: coupon})
}

// ListCoupons handles GET /api/v1/coupons. Out-of-range pagination values
// silently fall back to the defaults.
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := repository.CouponFilter{
		Page:    page.Page,
		PerPage: page.PerPage,
	}

	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "is_active must be true or false"},
			})
			return
		}
		filter.IsActive = &active
	}

	coupons, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(coupons, total, filter.Page, filter.PerPage))
}

// ActivateCoupon handles POST /api/v1/coupons/{id}/activate
func (h *CouponHandler) ActivateCoupon(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateCoupon handles POST /api/v1/coupons/{id}/deactivate
func (h *CouponHandler) DeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *CouponHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	coupon, err := h.service.SetActive(r.Context(), id.String(), active)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: coupon})
}
