package domain

import "time"

// Outbound topics are named by event type; the outbox publisher uses
// OutboxEvent.EventType as the Kafka topic and AggregateID as the key.
const (
	TopicPaymentCompleted     = "payment.completed"
	TopicPaymentFailed        = "payment.failed"
	TopicRevenueRecorded      = "payment.revenue_recorded"
	TopicCompensationRequired = "payment.compensation_required"
	TopicPaymentRefunded      = "payment.refunded"
	TopicUserRegistered       = "user.registered"

	AggregateTypePayment = "PAYMENT"
	SourceServiceUser    = "user-service"
)

// PaymentRefundedEvent is published after an administrative refund.
type PaymentRefundedEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderCode int64     `json:"order_code"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent is published when a payment reaches SUCCESS. This is
// the critical saga event and must not be lost, hence the outbox.
type PaymentCompletedEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderCode int64     `json:"order_code"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	PaidAt    time.Time `json:"paid_at"`
}

// PaymentFailedEvent is published when a payment reaches FAILED or CANCELLED.
type PaymentFailedEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderCode int64     `json:"order_code"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RevenueRecordedEvent feeds downstream revenue accounting.
type RevenueRecordedEvent struct {
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// CompensationRequiredEvent signals that a payment stuck in PROCESSING was
// force-failed and reserved resources downstream should be released.
type CompensationRequiredEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderCode int64     `json:"order_code"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRegisteredEvent is consumed from the user service, guarded by the
// idempotency guard.
type UserRegisteredEvent struct {
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
