package outbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payments/internal/domain"
)

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) CreateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, payload, status,
			retry_count, max_retry, last_error, next_retry_at, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := querier.ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.MaxRetry,
		nullString(event.LastError),
		nullTime(event.NextRetryAt),
		nullTime(event.PublishedAt),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetEligibleEvents(ctx context.Context, querier domain.Querier, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, payload, status,
			retry_count, max_retry, last_error, next_retry_at, published_at, created_at
		FROM outbox_events
		WHERE status = $1
		   OR (status = $2 AND retry_count < max_retry AND next_retry_at IS NOT NULL AND next_retry_at <= $3)
		ORDER BY created_at ASC
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	`
	rows, err := querier.QueryContext(ctx, query, domain.OutboxStatusPending, domain.OutboxStatusFailed, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		event := &domain.OutboxEvent{}
		var lastError sql.NullString
		var nextRetryAt, publishedAt sql.NullTime
		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&event.Payload,
			&event.Status,
			&event.RetryCount,
			&event.MaxRetry,
			&lastError,
			&nextRetryAt,
			&publishedAt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if lastError.Valid {
			event.LastError = lastError.String
		}
		if nextRetryAt.Valid {
			event.NextRetryAt = &nextRetryAt.Time
		}
		if publishedAt.Valid {
			event.PublishedAt = &publishedAt.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error {
	query := `
		UPDATE outbox_events
		SET status = $1, retry_count = $2, last_error = $3, next_retry_at = $4, published_at = $5
		WHERE id = $6
	`
	res, err := querier.ExecContext(ctx, query,
		event.Status,
		event.RetryCount,
		nullString(event.LastError),
		nullTime(event.NextRetryAt),
		nullTime(event.PublishedAt),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update outbox event %s: %w", event.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update (id %s): %w", event.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no outbox event found with id %s to update", event.ID)
	}
	return nil
}

func (r *outboxRepository) DeletePublishedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error) {
	query := `DELETE FROM outbox_events WHERE status = $1 AND published_at < $2`
	res, err := querier.ExecContext(ctx, query, domain.OutboxStatusPublished, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published outbox events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for outbox cleanup: %w", err)
	}
	return deleted, nil
}

func (r *outboxRepository) CountParkedEvents(ctx context.Context, querier domain.Querier) (int64, error) {
	// Parked events exhausted their retry budget and need operator attention.
	query := `SELECT COUNT(*) FROM outbox_events WHERE status = $1 AND retry_count >= max_retry`
	var count int64
	if err := querier.QueryRowContext(ctx, query, domain.OutboxStatusFailed).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count parked outbox events: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
