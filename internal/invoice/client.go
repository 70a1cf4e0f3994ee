// Package invoice is the client for the invoicing collaborator service.
package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"payments/internal/domain"
)

// Client issues invoices over HTTP. The invoicing service is idempotent per
// payment: issuing twice for the same payment id is a no-op there.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

type issueRequest struct {
	PaymentID string `json:"payment_id"`
	OrderCode int64  `json:"order_code"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (c *Client) IssueInvoice(ctx context.Context, payment *domain.Payment) error {
	body, err := json.Marshal(issueRequest{
		PaymentID: payment.ID,
		OrderCode: payment.OrderCode,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})
	if err != nil {
		return fmt.Errorf("failed to encode invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	// 409 means an invoice already exists for this payment, which is fine.
	if resp.StatusCode == http.StatusConflict {
		c.logger.Info("Invoice already exists for payment", zap.String("payment_id", payment.ID))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("invoice service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Invoice issued", zap.String("payment_id", payment.ID))
	return nil
}
