package processed_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"payments/internal/domain"
)

type processedEventRepository struct {
	db *sql.DB
}

func NewProcessedEventRepository(db *sql.DB) ProcessedEventRepository {
	return &processedEventRepository{db: db}
}

func (r *processedEventRepository) Exists(ctx context.Context, querier domain.Querier, eventID, eventType string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1 AND event_type = $2)`
	var exists bool
	if err := querier.QueryRowContext(ctx, query, eventID, eventType).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event %s (%s): %w", eventID, eventType, err)
	}
	return exists, nil
}

func (r *processedEventRepository) Create(ctx context.Context, querier domain.Querier, event *domain.ProcessedEvent) error {
	query := `
		INSERT INTO processed_events (id, event_id, event_type, source_service, payload_hash,
			processing_result, result_details, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		event.ID,
		event.EventID,
		event.EventType,
		event.SourceService,
		event.PayloadHash,
		event.Result,
		event.ResultDetails,
		event.ProcessedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return domain.ErrEventAlreadyProcessed
		}
		return fmt.Errorf("failed to create processed event: %w", err)
	}
	return nil
}

func (r *processedEventRepository) DeleteProcessedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error) {
	query := `DELETE FROM processed_events WHERE processed_at < $1`
	res, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old processed events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for processed event cleanup: %w", err)
	}
	return deleted, nil
}

func (r *processedEventRepository) FindRecentFailures(ctx context.Context, querier domain.Querier, since time.Time) ([]*domain.ProcessedEvent, error) {
	query := `
		SELECT id, event_id, event_type, source_service, payload_hash,
			processing_result, result_details, processed_at
		FROM processed_events
		WHERE processing_result = $1 AND processed_at > $2
		ORDER BY processed_at DESC
	`
	rows, err := querier.QueryContext(ctx, query, domain.ProcessingResultFailed, since)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent processing failures: %w", err)
	}
	defer rows.Close()

	var events []*domain.ProcessedEvent
	for rows.Next() {
		event := &domain.ProcessedEvent{}
		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.EventType,
			&event.SourceService,
			&event.PayloadHash,
			&event.Result,
			&event.ResultDetails,
			&event.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processed event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed events: %w", err)
	}
	return events, nil
}
