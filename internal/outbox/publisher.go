// Package outbox drains the transactional outbox to the messaging transport.
package outbox

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"payments/internal/domain"
	kafka_infra "payments/internal/infrastructure/kafka"
	"payments/internal/metrics"
	"payments/internal/repository/outbox_repo"
)

type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	CleanupInterval time.Duration
	Retention       time.Duration
}

// Publisher periodically selects eligible outbox events and delivers them to
// Kafka, topic = event type, key = aggregate id. Delivery is at-least-once:
// a crash between publish and mark leaves the event eligible for
// re-selection, so downstream consumers must be idempotent.
type Publisher struct {
	db         *sql.DB
	outboxRepo outbox_repo.OutboxRepository
	producer   kafka_infra.Producer
	config     Config
	logger     *zap.Logger
	busy       atomic.Bool
}

func NewPublisher(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka_infra.Producer,
	config Config,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		db:         db,
		outboxRepo: outboxRepo,
		producer:   producer,
		config:     config,
		logger:     logger,
	}
}

// Start runs the publish loop until ctx is cancelled. Ticks never overlap: a
// cycle still in flight makes the next tick a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.logger.Info("Starting outbox publisher",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("batch_size", p.config.BatchSize))

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopping")
			return
		case <-ticker.C:
			if !p.busy.CompareAndSwap(false, true) {
				p.logger.Debug("Previous outbox cycle still running, skipping tick")
				continue
			}
			if err := p.PublishPendingEvents(ctx); err != nil {
				p.logger.Error("Outbox publish cycle failed", zap.Error(err))
			}
			p.busy.Store(false)
		}
	}
}

// PublishPendingEvents runs one publish cycle. One event's failure never
// blocks the rest of the batch.
func (p *Publisher) PublishPendingEvents(ctx context.Context) error {
	now := time.Now()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	events, err := p.outboxRepo.GetEligibleEvents(ctx, tx, now, p.config.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	p.logger.Info("Found eligible outbox events", zap.Int("count", len(events)))

	for _, event := range events {
		if err := p.publishEvent(ctx, tx, event); err != nil {
			p.logger.Error("Failed to record outbox event outcome",
				zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	return tx.Commit()
}

func (p *Publisher) publishEvent(ctx context.Context, tx *sql.Tx, event *domain.OutboxEvent) error {
	err := p.producer.Produce(ctx, event.EventType, []byte(event.AggregateID), event.Payload)
	now := time.Now()

	if err == nil {
		event.MarkPublished(now)
		metrics.OutboxEventsPublished.Inc()
		p.logger.Info("Outbox event published",
			zap.String("event_id", event.ID),
			zap.String("topic", event.EventType),
			zap.String("aggregate_id", event.AggregateID))
		return p.outboxRepo.UpdateEventTx(ctx, tx, event)
	}

	event.LastError = err.Error()
	event.ScheduleNextRetry(now)
	if event.NextRetryAt != nil {
		metrics.OutboxPublishRetries.Inc()
		p.logger.Warn("Outbox event publish failed, retry scheduled",
			zap.String("event_id", event.ID),
			zap.Int("retry_count", event.RetryCount),
			zap.Time("next_retry_at", *event.NextRetryAt),
			zap.Error(err))
	} else {
		metrics.OutboxEventsParked.Inc()
		p.logger.Error("Outbox event exceeded max retries, parked for operator intervention",
			zap.String("event_id", event.ID),
			zap.Int("retry_count", event.RetryCount),
			zap.Error(err))
	}
	return p.outboxRepo.UpdateEventTx(ctx, tx, event)
}

// StartCleanup deletes PUBLISHED events older than the retention window on a
// slow cadence.
func (p *Publisher) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox cleanup stopping")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.config.Retention)
			deleted, err := p.outboxRepo.DeletePublishedBefore(ctx, p.db, cutoff)
			if err != nil {
				p.logger.Error("Outbox cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				metrics.OutboxEventsCleaned.Add(float64(deleted))
				p.logger.Info("Cleaned up old published outbox events", zap.Int64("deleted", deleted))
			}
			parked, err := p.outboxRepo.CountParkedEvents(ctx, p.db)
			if err != nil {
				p.logger.Error("Failed to count parked outbox events", zap.Error(err))
				continue
			}
			metrics.OutboxParkedEvents.Set(float64(parked))
			if parked > 0 {
				p.logger.Warn("Outbox events parked awaiting operator intervention", zap.Int64("parked", parked))
			}
		}
	}
}
