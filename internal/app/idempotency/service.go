// Package idempotency guards inbound event handlers against duplicate
// processing using durable (event_id, event_type) markers.
package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/repository/processed_repo"
	"payments/internal/util"
)

type Guard interface {
	IsProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType, source string, payload []byte, result domain.ProcessingResult, details string) error
	MarkSuccess(ctx context.Context, eventID, eventType, source string, payload []byte) error
	MarkFailed(ctx context.Context, eventID, eventType, source string, payload []byte, errMsg string) error
	MarkSkipped(ctx context.Context, eventID, eventType, source string, payload []byte, reason string) error
	CleanupOldMarkers(ctx context.Context, retention time.Duration) (int64, error)
	AuditRecentFailures(ctx context.Context, window time.Duration) (int, error)
}

type guard struct {
	db            *sql.DB
	processedRepo processed_repo.ProcessedEventRepository
	logger        *zap.Logger
}

func NewGuard(db *sql.DB, processedRepo processed_repo.ProcessedEventRepository, logger *zap.Logger) Guard {
	return &guard{db: db, processedRepo: processedRepo, logger: logger}
}

// IsProcessed is the fast existence check handlers call before doing
// side-effecting work.
func (g *guard) IsProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	exists, err := g.processedRepo.Exists(ctx, g.db, eventID, eventType)
	if err != nil {
		return false, err
	}
	if exists {
		g.logger.Info("Event already processed, skipping",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType))
	}
	return exists, nil
}

// MarkProcessed persists the marker in its own transaction on the root
// connection so it survives even when an enclosing business transaction
// later fails, breaking infinite redelivery loops.
func (g *guard) MarkProcessed(ctx context.Context, eventID, eventType, source string, payload []byte, result domain.ProcessingResult, details string) error {
	marker := &domain.ProcessedEvent{
		ID:            util.NewID(),
		EventID:       eventID,
		EventType:     eventType,
		SourceService: source,
		PayloadHash:   hashPayload(payload),
		Result:        result,
		ResultDetails: details,
		ProcessedAt:   time.Now(),
	}
	if err := g.processedRepo.Create(ctx, g.db, marker); err != nil {
		if errors.Is(err, domain.ErrEventAlreadyProcessed) {
			g.logger.Info("Processed marker already exists",
				zap.String("event_id", eventID),
				zap.String("event_type", eventType))
			return nil
		}
		return fmt.Errorf("failed to mark event %s as processed: %w", eventID, err)
	}
	return nil
}

func (g *guard) MarkSuccess(ctx context.Context, eventID, eventType, source string, payload []byte) error {
	return g.MarkProcessed(ctx, eventID, eventType, source, payload, domain.ProcessingResultSuccess, "")
}

func (g *guard) MarkFailed(ctx context.Context, eventID, eventType, source string, payload []byte, errMsg string) error {
	return g.MarkProcessed(ctx, eventID, eventType, source, payload, domain.ProcessingResultFailed, errMsg)
}

func (g *guard) MarkSkipped(ctx context.Context, eventID, eventType, source string, payload []byte, reason string) error {
	return g.MarkProcessed(ctx, eventID, eventType, source, payload, domain.ProcessingResultSkipped, reason)
}

func (g *guard) CleanupOldMarkers(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	deleted, err := g.processedRepo.DeleteProcessedBefore(ctx, g.db, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		g.logger.Info("Cleaned up old processed event markers", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// AuditRecentFailures reports how many inbound events failed processing
// inside the window, logging each for operator follow-up.
func (g *guard) AuditRecentFailures(ctx context.Context, window time.Duration) (int, error) {
	since := time.Now().Add(-window)
	failures, err := g.processedRepo.FindRecentFailures(ctx, g.db, since)
	if err != nil {
		return 0, err
	}
	for _, failure := range failures {
		g.logger.Warn("Inbound event processing failure",
			zap.String("event_id", failure.EventID),
			zap.String("event_type", failure.EventType),
			zap.String("source_service", failure.SourceService),
			zap.String("details", failure.ResultDetails),
			zap.Time("processed_at", failure.ProcessedAt))
	}
	return len(failures), nil
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
