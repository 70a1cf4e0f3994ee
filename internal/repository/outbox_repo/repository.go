package outbox_repo

import (
	"context"
	"time"

	"payments/internal/domain"
)

type OutboxRepository interface {
	// CreateEventTx appends an event within the caller's transaction so a
	// rollback of the business change leaves no event row behind.
	CreateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error
	// GetEligibleEvents selects PENDING events plus FAILED ones whose
	// next_retry_at has passed and whose retry budget is not exhausted,
	// oldest first, locking the rows so concurrent publishers skip them.
	GetEligibleEvents(ctx context.Context, querier domain.Querier, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	UpdateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error
	DeletePublishedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error)
	CountParkedEvents(ctx context.Context, querier domain.Querier) (int64, error)
}
