// Package payos is a thin client for the PayOS payment gateway: payment link
// lifecycle plus webhook signature verification.
package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api-merchant.payos.vn/v2/payment-requests"

// Client talks to the gateway's payment-requests API.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	httpClient  *http.Client
	logger      *zap.Logger
}

type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// VerifyWebhook checks the inbound event's signature. The reconciler depends
// only on this boolean and the fixed code vocabulary above.
func (c *Client) VerifyWebhook(event *WebhookEvent) bool {
	return event.Verify(c.checksumKey)
}

// PaymentLinkRequest describes a checkout link to create.
type PaymentLinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
}

// PaymentLink is the gateway's view of a checkout link.
type PaymentLink struct {
	PaymentLinkID      string `json:"paymentLinkId"`
	OrderCode          int64  `json:"orderCode"`
	Amount             int64  `json:"amount"`
	Status             string `json:"status"`
	CheckoutURL        string `json:"checkoutUrl"`
	QRCode             string `json:"qrCode"`
	CancellationReason string `json:"cancellationReason"`
}

type apiResponse struct {
	Code    string          `json:"code"`
	Desc    string          `json:"desc"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (*PaymentLink, error) {
	body := map[string]string{
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"amount":      strconv.FormatInt(req.Amount, 10),
		"description": req.Description,
		"returnUrl":   req.ReturnURL,
		"cancelUrl":   req.CancelURL,
	}
	body["signature"] = Sign(c.checksumKey, body)

	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, c.baseURL, body, &link); err != nil {
		return nil, fmt.Errorf("failed to create payment link for order %d: %w", req.OrderCode, err)
	}
	return &link, nil
}

func (c *Client) GetPaymentLink(ctx context.Context, orderCode int64) (*PaymentLink, error) {
	url := fmt.Sprintf("%s/%d", c.baseURL, orderCode)
	var link PaymentLink
	if err := c.do(ctx, http.MethodGet, url, nil, &link); err != nil {
		return nil, fmt.Errorf("failed to get payment link for order %d: %w", orderCode, err)
	}
	return &link, nil
}

func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*PaymentLink, error) {
	url := fmt.Sprintf("%s/%d", c.baseURL, orderCode)
	body := map[string]string{}
	if reason != "" {
		body["cancellationReason"] = reason
	}
	var link PaymentLink
	if err := c.do(ctx, http.MethodDelete, url, body, &link); err != nil {
		return nil, fmt.Errorf("failed to cancel payment link for order %d: %w", orderCode, err)
	}
	return &link, nil
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Gateway API error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return fmt.Errorf("gateway API error: status %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode gateway response data: %w", err)
		}
	}
	return nil
}
