package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payments/internal/app/payments"
	"payments/internal/domain"
	"payments/internal/gateway/payos"
	"payments/internal/metrics"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type CreatePaymentRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type PaymentResponse struct {
	ID          string `json:"id"`
	OrderCode   int64  `json:"order_code"`
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Status      string `json:"status"`
	PaymentURL  string `json:"payment_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	PaidAt      string `json:"paid_at,omitempty"`
}

func (h *PaymentHandler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "VND"
	}

	payment, err := h.service.CreatePayment(r.Context(), req.UserID, req.Amount, req.Currency, req.Description)
	if err != nil {
		h.logger.Error("Failed to create payment", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(payment), h.logger)
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	orderCode, err := strconv.ParseInt(chi.URLParam(r, "orderCode"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order code", http.StatusBadRequest)
		return
	}

	payment, err := h.service.GetPaymentByOrderCode(r.Context(), orderCode)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			http.Error(w, "Payment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get payment", zap.Int64("order_code", orderCode), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(payment), h.logger)
}

func (h *PaymentHandler) RefundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	orderCode, err := strconv.ParseInt(chi.URLParam(r, "orderCode"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order code", http.StatusBadRequest)
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.service.RefundPayment(r.Context(), orderCode, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotFound):
			http.Error(w, "Payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidTransition):
			http.Error(w, "Payment cannot be refunded in its current status", http.StatusConflict)
		default:
			h.logger.Error("Failed to refund payment", zap.Int64("order_code", orderCode), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(payment), h.logger)
}

// WebhookHandler ingests gateway notifications. A signature mismatch is the
// only rejection; an unmatched payment still answers 200 so the gateway does
// not redeliver a non-retryable condition.
func (h *PaymentHandler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var event payos.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Warn("Malformed webhook body", zap.Error(err))
		metrics.WebhooksProcessed.WithLabelValues("malformed").Inc()
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.HandleWebhook(r.Context(), &event)
	switch {
	case err == nil:
		metrics.WebhooksProcessed.WithLabelValues("processed").Inc()
	case errors.Is(err, domain.ErrInvalidSignature):
		metrics.WebhooksProcessed.WithLabelValues("invalid_signature").Inc()
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	case errors.Is(err, domain.ErrPaymentNotFound):
		metrics.WebhooksProcessed.WithLabelValues("not_found").Inc()
		// Fall through to 200: redelivery would not help here.
	default:
		metrics.WebhooksProcessed.WithLabelValues("error").Inc()
		h.logger.Error("Failed to process webhook", zap.Int64("order_code", event.OrderCode), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success":true}`))
}

func toResponse(payment *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          payment.ID,
		OrderCode:   payment.OrderCode,
		UserID:      payment.UserID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: payment.Description,
		Status:      string(payment.Status),
		PaymentURL:  payment.PaymentURL,
		CreatedAt:   payment.CreatedAt.Format(time.RFC3339),
	}
	if payment.PaidAt != nil {
		resp.PaidAt = payment.PaidAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
