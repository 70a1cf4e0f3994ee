package payos

import "strconv"

// Gateway result codes carried in webhook payloads.
const (
	CodeSuccess    = "00"
	CodePending    = "01"
	CodeProcessing = "02"
	CodeCancelled  = "03"
)

// WebhookEvent is the inbound payload posted by the gateway after a payment
// attempt settles or changes state.
type WebhookEvent struct {
	OrderCode           int64  `json:"orderCode"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	AccountNumber       string `json:"accountNumber"`
	Reference           string `json:"reference"`
	TransactionDateTime string `json:"transactionDateTime"`
	Code                string `json:"code"`
	Signature           string `json:"signature"`
}

// SignedFields returns the canonical field set the signature covers: every
// payload field except the signature itself.
func (e *WebhookEvent) SignedFields() map[string]string {
	return map[string]string{
		"orderCode":           strconv.FormatInt(e.OrderCode, 10),
		"amount":              strconv.FormatInt(e.Amount, 10),
		"description":         e.Description,
		"accountNumber":       e.AccountNumber,
		"reference":           e.Reference,
		"transactionDateTime": e.TransactionDateTime,
		"code":                e.Code,
	}
}

// Verify checks the event's signature against the shared checksum key.
func (e *WebhookEvent) Verify(checksumKey string) bool {
	return VerifySignature(checksumKey, e.SignedFields(), e.Signature)
}
