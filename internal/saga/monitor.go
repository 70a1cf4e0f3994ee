// Package saga watches for payments stuck in non-terminal states and drives
// timeout compensation.
package saga

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/metrics"
	"payments/internal/repository/outbox_repo"
	"payments/internal/repository/payments_repo"
	"payments/internal/util"
)

type Config struct {
	SweepInterval    time.Duration
	ProcessingExpiry time.Duration
	SuccessAckExpiry time.Duration
	AuditInterval    time.Duration
	AuditWindow      time.Duration
	BatchSize        int
}

// Monitor force-fails payments stuck in PROCESSING past the deadline and
// flags SUCCESS payments whose downstream acknowledgment is overdue. A
// terminal SUCCESS is never auto-mutated.
type Monitor struct {
	db          *sql.DB
	paymentRepo payments_repo.PaymentRepository
	outboxRepo  outbox_repo.OutboxRepository
	config      Config
	logger      *zap.Logger
	busy        atomic.Bool
}

func NewMonitor(
	db *sql.DB,
	paymentRepo payments_repo.PaymentRepository,
	outboxRepo outbox_repo.OutboxRepository,
	config Config,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		db:          db,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		config:      config,
		logger:      logger,
	}
}

// Start runs the timeout sweep until ctx is cancelled, skipping a tick if the
// previous sweep has not finished.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting saga timeout monitor",
		zap.Duration("sweep_interval", m.config.SweepInterval),
		zap.Duration("processing_expiry", m.config.ProcessingExpiry))

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Saga timeout monitor stopping")
			return
		case <-ticker.C:
			if !m.busy.CompareAndSwap(false, true) {
				m.logger.Debug("Previous saga sweep still running, skipping tick")
				continue
			}
			if err := m.CheckStuckPayments(ctx); err != nil {
				m.logger.Error("Saga timeout sweep failed", zap.Error(err))
			}
			m.busy.Store(false)
		}
	}
}

// CheckStuckPayments runs both sweeps once. Per-payment errors are logged and
// skipped so one bad row cannot halt the sweep.
func (m *Monitor) CheckStuckPayments(ctx context.Context) error {
	now := time.Now()

	cutoff := now.Add(-m.config.ProcessingExpiry)
	stuck, err := m.paymentRepo.FindByStatusUpdatedBefore(ctx, m.db, domain.PaymentStatusProcessing, cutoff, m.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to find stuck PROCESSING payments: %w", err)
	}
	for _, payment := range stuck {
		if err := m.failTimedOutPayment(ctx, payment, now); err != nil {
			m.logger.Error("Failed to compensate timed-out payment",
				zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}

	ackCutoff := now.Add(-m.config.SuccessAckExpiry)
	unacked, err := m.paymentRepo.FindByStatusUpdatedBefore(ctx, m.db, domain.PaymentStatusSuccess, ackCutoff, m.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to find unacknowledged SUCCESS payments: %w", err)
	}
	metrics.SagaStuckSuccess.Set(float64(len(unacked)))
	for _, payment := range unacked {
		// Flag only. A successful payment is never auto-mutated.
		m.logger.Warn("Stuck payment needs manual review",
			zap.String("payment_id", payment.ID),
			zap.Int64("order_code", payment.OrderCode),
			zap.Int64("amount", payment.Amount),
			zap.Timep("paid_at", payment.PaidAt))
	}

	return nil
}

// failTimedOutPayment force-transitions one PROCESSING payment to FAILED and
// appends the compensation event, atomically. The row is re-read under lock
// inside the transaction: the sweep's selection ran unlocked, so a payment
// reconciled in the meantime must be skipped, never overwritten.
func (m *Monitor) failTimedOutPayment(ctx context.Context, stale *domain.Payment, now time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := m.paymentRepo.GetByIDTx(ctx, tx, stale.ID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil
		}
		return fmt.Errorf("failed to re-read timed-out payment: %w", err)
	}
	if payment.Status != domain.PaymentStatusProcessing {
		m.logger.Info("Payment left PROCESSING before compensation, skipping",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(payment.Status)))
		return nil
	}

	payment.Status = domain.PaymentStatusFailed
	if err := m.paymentRepo.UpdateStatusTx(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to fail timed-out payment: %w", err)
	}

	compensation := domain.CompensationRequiredEvent{
		PaymentID: payment.ID,
		OrderCode: payment.OrderCode,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Reason:    fmt.Sprintf("payment stuck in PROCESSING for more than %s", m.config.ProcessingExpiry),
		Timestamp: now,
	}
	payload, err := json.Marshal(compensation)
	if err != nil {
		return fmt.Errorf("failed to encode compensation event: %w", err)
	}
	event := &domain.OutboxEvent{
		ID:            util.NewID(),
		AggregateID:   payment.ID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     domain.TopicCompensationRequired,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		MaxRetry:      domain.DefaultMaxRetry,
		CreatedAt:     now,
	}
	if err := m.outboxRepo.CreateEventTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to append compensation event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit timeout compensation: %w", err)
	}

	metrics.SagaTimeouts.Inc()
	m.logger.Error("Payment timed out in PROCESSING and was marked FAILED",
		zap.String("payment_id", payment.ID),
		zap.Int64("order_code", payment.OrderCode))
	return nil
}

// StartAudit reports recent FAILED counts on a low-frequency schedule without
// mutating state.
func (m *Monitor) StartAudit(ctx context.Context) {
	ticker := time.NewTicker(m.config.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Saga audit stopping")
			return
		case <-ticker.C:
			if err := m.AuditFailedPayments(ctx); err != nil {
				m.logger.Error("Saga audit failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) AuditFailedPayments(ctx context.Context) error {
	since := time.Now().Add(-m.config.AuditWindow)
	count, err := m.paymentRepo.CountByStatusCreatedAfter(ctx, m.db, domain.PaymentStatusFailed, since)
	if err != nil {
		return fmt.Errorf("failed to count recent failed payments: %w", err)
	}
	metrics.SagaFailedPaymentsAudited.Set(float64(count))
	m.logger.Info("Failed payment audit",
		zap.Int64("failed_count", count),
		zap.Duration("window", m.config.AuditWindow))
	return nil
}
