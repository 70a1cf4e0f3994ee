// Package util holds small helpers shared across the service.
package util

import "github.com/google/uuid"

// NewID returns a random identifier for payments, outbox events and
// idempotency markers.
func NewID() string {
	return uuid.NewString()
}
