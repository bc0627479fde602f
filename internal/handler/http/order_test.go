package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/internal/repository"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

const testOrderID = "550e8400-e29b-41d4-a716-446655440001"

func sampleOrder() *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:     testOrderID,
		UserID: "user-456",
		Status: domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{
				ID:        "550e8400-e29b-41d4-a716-446655440010",
				OrderID:   testOrderID,
				ProductID: "prod-001",
				Name:      "Classic Tee",
				SKU:       "TEE-001",
				Selection: domain.Selection{"size": "M", "color": "black"},
				Price:     49900,
				Quantity:  2,
			},
		},
		Subtotal:    99800,
		Tax:         17964,
		Shipping:    5000,
		Discount:    0,
		TotalAmount: 122764,
		Currency:    "INR",
		ShippingAddress: &domain.Address{
			FullName:    "Asha Rao",
			AddressLine: "14 MG Road",
			City:        "Bengaluru",
			State:       "KA",
			PostalCode:  "560001",
			Country:     "IN",
		},
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func validCreateOrderJSON() []byte {
	body := CreateOrderRequest{
		Items: []OrderLineRequest{
			{ProductID: "prod-001", Quantity: 2, Selection: map[string]string{"size": "M"}},
		},
		ShippingAddress: domain.Address{
			FullName:    "Asha Rao",
			AddressLine: "14 MG Road",
			City:        "Bengaluru",
			State:       "KA",
			PostalCode:  "560001",
			Country:     "IN",
		},
		PaymentMethod: domain.PaymentMethodCOD,
	}
	b, _ := json.Marshal(body)
	return b
}

func orderCatalog() map[string]*domain.Product {
	return map[string]*domain.Product{
		"prod-001": {
			ID: "prod-001", Name: "Classic Tee", SKU: "TEE-001", Price: 49900, Stock: 25,
			Variants: map[string]any{"size": []any{"S", "M", "L"}},
			IsActive: true,
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	router, deps := setupRouter()

	deps.products.On("GetByIDs", mock.Anything, []string{"prod-001"}).Return(orderCatalog(), nil)
	deps.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order"), "").Return(nil)
	deps.carts.On("Delete", mock.Anything, "user-456").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(validCreateOrderJSON()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user-456", data["user_id"])
	assert.Equal(t, "pending", data["status"])
	// subtotal 99800, tax 17964, shipping 5000 (below free threshold)
	assert.Equal(t, float64(122764), data["total_amount"])
	deps.orders.AssertExpectations(t)
}

func TestCreateOrder_IdempotencyKeyHeader(t *testing.T) {
	router, deps := setupRouter()

	deps.orders.On("GetByIdempotencyKey", mock.Anything, "user-456", "retry-123").
		Return(sampleOrder(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(validCreateOrderJSON()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-456")
	req.Header.Set("Idempotency-Key", "retry-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testOrderID, data["id"])
	deps.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	router, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte(`{invalid json`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestCreateOrder_ValidationError_NoItems(t *testing.T) {
	router, _ := setupRouter()

	body, _ := json.Marshal(CreateOrderRequest{
		Items:         []OrderLineRequest{},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateOrder_StockGuardConflict(t *testing.T) {
	router, deps := setupRouter()

	deps.products.On("GetByIDs", mock.Anything, []string{"prod-001"}).Return(orderCatalog(), nil)
	deps.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order"), "").
		Return(apperrors.InsufficientStock("prod-001", 1))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(validCreateOrderJSON()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
}

func TestListOrders_ScopedToUser(t *testing.T) {
	router, deps := setupRouter()

	uid := "user-456"
	deps.orders.On("List", mock.Anything, repository.OrderFilter{UserID: &uid, Page: 1, PerPage: 20}).
		Return([]domain.Order{*sampleOrder()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-ID", uid)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var paged struct {
		Data       []map[string]any `json:"data"`
		TotalCount int              `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&paged))
	assert.Equal(t, 1, paged.TotalCount)
	require.Len(t, paged.Data, 1)
	deps.orders.AssertExpectations(t)
}

func TestGetOrder_Forbidden(t *testing.T) {
	router, deps := setupRouter()

	deps.orders.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+testOrderID, nil)
	req.Header.Set("X-User-ID", "someone-else")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	router, deps := setupRouter()

	deps.orders.On("GetByID", mock.Anything, testOrderID).
		Return(nil, apperrors.NotFound("order", testOrderID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+testOrderID, nil)
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder_Success(t *testing.T) {
	router, deps := setupRouter()

	deps.orders.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)
	deps.orders.On("Cancel", mock.Anything, testOrderID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+testOrderID+"/cancel", nil)
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cancelled", data["status"])
}

func TestCancelOrder_AlreadyShipped(t *testing.T) {
	router, deps := setupRouter()

	shipped := sampleOrder()
	shipped.Status = domain.OrderStatusShipped
	deps.orders.On("GetByID", mock.Anything, testOrderID).Return(shipped, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+testOrderID+"/cancel", nil)
	req.Header.Set("X-User-ID", "user-456")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	deps.orders.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_Success(t *testing.T) {
	router, deps := setupRouter()

	confirmed := sampleOrder()
	confirmed.Status = domain.OrderStatusConfirmed
	deps.orders.On("GetByID", mock.Anything, testOrderID).Return(confirmed, nil)
	deps.orders.On("UpdateStatus", mock.Anything, testOrderID, "shipped").Return(nil)

	body := []byte(`{"status":"shipped"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+testOrderID+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	router, _ := setupRouter()

	body := []byte(`{"status":"teleported"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+testOrderID+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePaymentStatus_Success(t *testing.T) {
	router, deps := setupRouter()

	deps.orders.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)
	deps.orders.On("UpdatePaymentStatus", mock.Anything, testOrderID, "paid").Return(nil)

	body := []byte(`{"payment_status":"paid"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+testOrderID+"/payment-status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "paid", data["payment_status"])
}
