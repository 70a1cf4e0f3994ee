package processed_repo

import (
	"context"
	"time"

	"payments/internal/domain"
)

type ProcessedEventRepository interface {
	Exists(ctx context.Context, querier domain.Querier, eventID, eventType string) (bool, error)
	// Create persists the idempotency marker; a duplicate (event_id,
	// event_type) pair returns domain.ErrEventAlreadyProcessed.
	Create(ctx context.Context, querier domain.Querier, event *domain.ProcessedEvent) error
	DeleteProcessedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error)
	FindRecentFailures(ctx context.Context, querier domain.Querier, since time.Time) ([]*domain.ProcessedEvent, error)
}
