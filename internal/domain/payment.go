package domain

import (
	"errors"
	"time"
)

var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentAlreadyExists  = errors.New("payment already exists")
	ErrInvalidTransition     = errors.New("invalid payment status transition")
	ErrInvalidSignature      = errors.New("webhook signature verification failed")
	ErrEventAlreadyProcessed = errors.New("event already processed")
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Payment is the aggregate root for one attempted transfer tied to an order.
// Amount is immutable after creation; status moves only along the fixed
// partial order below.
type Payment struct {
	ID                    string
	OrderCode             int64
	UserID                string
	Amount                int64
	Currency              string
	Description           string
	Status                PaymentStatus
	PaymentURL            string
	ProviderTransactionID string
	ReferenceCode         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	PaidAt                *time.Time
	CancelledAt           *time.Time
}

// validTransitions is the fixed partial order over payment statuses.
// SUCCESS -> REFUNDED is reachable only through an administrative refund;
// every other edge out of a terminal state is rejected.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSuccess:    {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusCancelled:  {},
	PaymentStatusRefunded:   {},
}

// CanTransition reports whether moving from the payment's current status to
// next is allowed by the partial order.
func (p *Payment) CanTransition(next PaymentStatus) bool {
	for _, allowed := range validTransitions[p.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further non-administrative
// transition.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}
