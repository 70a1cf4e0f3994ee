package payments_http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/gateway/payos"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, userID string, amount int64, currency, description string) (*domain.Payment, error) {
	args := m.Called(ctx, userID, amount, currency, description)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, event *payos.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, orderCode int64, reason string) (*domain.Payment, error) {
	args := m.Called(ctx, orderCode, reason)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) GetPaymentByOrderCode(ctx context.Context, orderCode int64) (*domain.Payment, error) {
	args := m.Called(ctx, orderCode)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestRouter(service *MockPaymentService) http.Handler {
	router := chi.NewRouter()
	RegisterRoutes(router, service, zap.NewNop())
	return router
}

func samplePayment() *domain.Payment {
	return &domain.Payment{
		ID:        "pay-1",
		OrderCode: 4200123,
		UserID:    "user-1",
		Amount:    100000,
		Currency:  "VND",
		Status:    domain.PaymentStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestWebhookHandlerAccepted(t *testing.T) {
	service := &MockPaymentService{}
	service.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(e *payos.WebhookEvent) bool {
		return e.OrderCode == 4200123 && e.Code == payos.CodeSuccess
	})).Return(nil)

	body := `{"orderCode":4200123,"amount":100000,"code":"00","signature":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	service.AssertExpectations(t)
}

func TestWebhookHandlerInvalidSignature(t *testing.T) {
	service := &MockPaymentService{}
	service.On("HandleWebhook", mock.Anything, mock.Anything).Return(domain.ErrInvalidSignature)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", strings.NewReader(`{"orderCode":1}`))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandlerUnmatchedPaymentStillAnswers200(t *testing.T) {
	service := &MockPaymentService{}
	service.On("HandleWebhook", mock.Anything, mock.Anything).Return(domain.ErrPaymentNotFound)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", strings.NewReader(`{"orderCode":1}`))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestWebhookHandlerMalformedBody(t *testing.T) {
	service := &MockPaymentService{}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything)
}

func TestWebhookHandlerInternalError(t *testing.T) {
	service := &MockPaymentService{}
	service.On("HandleWebhook", mock.Anything, mock.Anything).Return(assert.AnError)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", strings.NewReader(`{"orderCode":1}`))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPaymentHandler(t *testing.T) {
	service := &MockPaymentService{}
	service.On("GetPaymentByOrderCode", mock.Anything, int64(4200123)).Return(samplePayment(), nil)

	req := httptest.NewRequest(http.MethodGet, "/payments/4200123", nil)
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_code":4200123`)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)
}

func TestGetPaymentHandlerNotFound(t *testing.T) {
	service := &MockPaymentService{}
	service.On("GetPaymentByOrderCode", mock.Anything, int64(1)).Return(nil, domain.ErrPaymentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/payments/1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPaymentHandlerInvalidOrderCode(t *testing.T) {
	service := &MockPaymentService{}

	req := httptest.NewRequest(http.MethodGet, "/payments/not-a-number", nil)
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentHandlerValidation(t *testing.T) {
	service := &MockPaymentService{}

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":100}`))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePaymentHandler(t *testing.T) {
	service := &MockPaymentService{}
	service.On("CreatePayment", mock.Anything, "user-1", int64(100000), "VND", "NAP1COIN ord-42").
		Return(samplePayment(), nil)

	body := `{"user_id":"user-1","amount":100000,"description":"NAP1COIN ord-42"}`
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	service.AssertExpectations(t)
}

func TestRefundPaymentHandlerConflict(t *testing.T) {
	service := &MockPaymentService{}
	service.On("RefundPayment", mock.Anything, int64(4200123), "customer request").
		Return(nil, domain.ErrInvalidTransition)

	body := `{"reason":"customer request"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/4200123/refund", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
