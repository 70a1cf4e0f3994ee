package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"pending to processing", PaymentStatusPending, PaymentStatusProcessing, true},
		{"pending to success", PaymentStatusPending, PaymentStatusSuccess, true},
		{"pending to failed", PaymentStatusPending, PaymentStatusFailed, true},
		{"pending to cancelled", PaymentStatusPending, PaymentStatusCancelled, true},
		{"pending to refunded", PaymentStatusPending, PaymentStatusRefunded, false},
		{"processing to success", PaymentStatusProcessing, PaymentStatusSuccess, true},
		{"processing to failed", PaymentStatusProcessing, PaymentStatusFailed, true},
		{"processing to cancelled", PaymentStatusProcessing, PaymentStatusCancelled, true},
		{"processing to pending", PaymentStatusProcessing, PaymentStatusPending, false},
		{"success to refunded", PaymentStatusSuccess, PaymentStatusRefunded, true},
		{"success to failed", PaymentStatusSuccess, PaymentStatusFailed, false},
		{"success to pending", PaymentStatusSuccess, PaymentStatusPending, false},
		{"failed to success", PaymentStatusFailed, PaymentStatusSuccess, false},
		{"cancelled to success", PaymentStatusCancelled, PaymentStatusSuccess, false},
		{"refunded to success", PaymentStatusRefunded, PaymentStatusSuccess, false},
		{"refunded to refunded", PaymentStatusRefunded, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := &Payment{Status: tt.from}
			assert.Equal(t, tt.allowed, payment.CanTransition(tt.to))
		})
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatusProcessing.IsTerminal())
	assert.False(t, PaymentStatusSuccess.IsTerminal())
	assert.True(t, PaymentStatusFailed.IsTerminal())
	assert.True(t, PaymentStatusCancelled.IsTerminal())
	assert.True(t, PaymentStatusRefunded.IsTerminal())
}
