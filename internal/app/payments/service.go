package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/gateway/payos"
	"payments/internal/repository/outbox_repo"
	"payments/internal/repository/payments_repo"
	"payments/internal/util"
)

// Gateway is the slice of the payment gateway client the service depends on.
type Gateway interface {
	VerifyWebhook(event *payos.WebhookEvent) bool
	CreatePaymentLink(ctx context.Context, req *payos.PaymentLinkRequest) (*payos.PaymentLink, error)
	CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*payos.PaymentLink, error)
}

// InvoiceIssuer issues an invoice for a successful payment. Implementations
// must be idempotent: issuing twice for the same payment is a no-op.
type InvoiceIssuer interface {
	IssueInvoice(ctx context.Context, payment *domain.Payment) error
}

type PaymentService interface {
	CreatePayment(ctx context.Context, userID string, amount int64, currency, description string) (*domain.Payment, error)
	HandleWebhook(ctx context.Context, event *payos.WebhookEvent) error
	RefundPayment(ctx context.Context, orderCode int64, reason string) (*domain.Payment, error)
	GetPaymentByOrderCode(ctx context.Context, orderCode int64) (*domain.Payment, error)
}

type paymentService struct {
	db          *sql.DB
	paymentRepo payments_repo.PaymentRepository
	outboxRepo  outbox_repo.OutboxRepository
	gateway     Gateway
	invoices    InvoiceIssuer
	returnURL   string
	cancelURL   string
	logger      *zap.Logger
}

func NewPaymentService(
	db *sql.DB,
	paymentRepo payments_repo.PaymentRepository,
	outboxRepo outbox_repo.OutboxRepository,
	gateway Gateway,
	invoices InvoiceIssuer,
	returnURL, cancelURL string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:          db,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		invoices:    invoices,
		returnURL:   returnURL,
		cancelURL:   cancelURL,
		logger:      logger,
	}
}

// CreatePayment initiates checkout: allocates a unique order code, creates
// the gateway payment link and persists the PENDING payment.
func (s *paymentService) CreatePayment(ctx context.Context, userID string, amount int64, currency, description string) (*domain.Payment, error) {
	orderCode, err := s.generateOrderCode(ctx)
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, &payos.PaymentLinkRequest{
		OrderCode:   orderCode,
		Amount:      amount,
		Description: description,
		ReturnURL:   s.returnURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:          util.NewID(),
		OrderCode:   orderCode,
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Status:      domain.PaymentStatusPending,
		PaymentURL:  link.CheckoutURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.paymentRepo.CreateTx(ctx, s.db, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment for order %d: %w", orderCode, err)
	}

	s.logger.Info("Payment created",
		zap.String("payment_id", payment.ID),
		zap.Int64("order_code", orderCode),
		zap.Int64("amount", amount))
	return payment, nil
}

// HandleWebhook reconciles an inbound gateway notification with the local
// payment state. The status mutation and the outbox appends commit as one
// atomic unit; duplicate deliveries are race-free no-ops because concurrent
// webhooks for the same payment serialize on its row.
func (s *paymentService) HandleWebhook(ctx context.Context, event *payos.WebhookEvent) error {
	if !s.gateway.VerifyWebhook(event) {
		s.logger.Warn("Rejected webhook with invalid signature", zap.Int64("order_code", event.OrderCode))
		return domain.ErrInvalidSignature
	}

	mappedStatus, mutate := mapWebhookCode(event.Code)
	if !mutate {
		s.logger.Info("Webhook code carries no terminal state, leaving payment unchanged",
			zap.Int64("order_code", event.OrderCode),
			zap.String("code", event.Code))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic during webhook transaction, rolling back",
				zap.Int64("order_code", event.OrderCode), zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	mutated, err := s.handleWebhookTx(ctx, tx, event, mappedStatus)
	if err != nil || !mutated {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error("Failed to roll back webhook transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit webhook transaction: %w", err)
	}
	return nil
}

func (s *paymentService) handleWebhookTx(ctx context.Context, tx *sql.Tx, event *payos.WebhookEvent, newStatus domain.PaymentStatus) (bool, error) {
	payment, err := s.resolvePayment(ctx, tx, event)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.logger.Warn("No local payment matches webhook",
				zap.Int64("order_code", event.OrderCode),
				zap.Int64("amount", event.Amount),
				zap.String("reference", event.Reference))
			return false, domain.ErrPaymentNotFound
		}
		return false, err
	}

	if payment.Status == newStatus {
		s.logger.Info("Duplicate webhook delivery, payment already in target status",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(newStatus)))
		return false, nil
	}
	if !payment.CanTransition(newStatus) {
		s.logger.Warn("Webhook requested transition rejected by status partial order",
			zap.String("payment_id", payment.ID),
			zap.String("from", string(payment.Status)),
			zap.String("to", string(newStatus)))
		return false, nil
	}

	now := time.Now()
	payment.Status = newStatus
	payment.ProviderTransactionID = event.Reference

	switch newStatus {
	case domain.PaymentStatusSuccess:
		payment.PaidAt = &now
	case domain.PaymentStatusCancelled:
		payment.CancelledAt = &now
	}

	if err := s.paymentRepo.UpdateStatusTx(ctx, tx, payment); err != nil {
		return false, fmt.Errorf("failed to update payment %s: %w", payment.ID, err)
	}

	switch newStatus {
	case domain.PaymentStatusSuccess:
		// Invoice issuance is best effort: a failure here must not abort
		// the success transaction, the issuer retries out of band.
		if err := s.invoices.IssueInvoice(ctx, payment); err != nil {
			s.logger.Error("Failed to issue invoice, continuing",
				zap.String("payment_id", payment.ID), zap.Error(err))
		}
		if err := s.appendCompletionEvents(ctx, tx, payment, now); err != nil {
			return false, err
		}
	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		reason := fmt.Sprintf("gateway result code %s", event.Code)
		if err := s.appendFailureEvent(ctx, tx, payment, reason, now); err != nil {
			return false, err
		}
	}

	s.logger.Info("Payment reconciled from webhook",
		zap.String("payment_id", payment.ID),
		zap.Int64("order_code", payment.OrderCode),
		zap.String("status", string(newStatus)))
	return true, nil
}

// resolvePayment walks the correlation fallback chain: provider transaction
// id, then order code, then the amount-and-description-prefix heuristic over
// PENDING payments (the gateway does not always echo the original ids).
func (s *paymentService) resolvePayment(ctx context.Context, tx *sql.Tx, event *payos.WebhookEvent) (*domain.Payment, error) {
	if event.Reference != "" {
		payment, err := s.paymentRepo.GetByProviderTransactionIDTx(ctx, tx, event.Reference)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
	}

	payment, err := s.paymentRepo.GetByOrderCodeTx(ctx, tx, event.OrderCode)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	return s.paymentRepo.FindPendingByAmountAndDescriptionTx(ctx, tx, event.Amount, event.Description)
}

func (s *paymentService) appendCompletionEvents(ctx context.Context, tx *sql.Tx, payment *domain.Payment, now time.Time) error {
	completed := domain.PaymentCompletedEvent{
		PaymentID: payment.ID,
		OrderCode: payment.OrderCode,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		PaidAt:    now,
	}
	if err := s.appendOutboxEvent(ctx, tx, payment.ID, domain.TopicPaymentCompleted, completed, now); err != nil {
		return err
	}

	revenue := domain.RevenueRecordedEvent{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Date:      now.Format("2006-01-02"),
		Timestamp: now,
	}
	return s.appendOutboxEvent(ctx, tx, payment.ID, domain.TopicRevenueRecorded, revenue, now)
}

func (s *paymentService) appendFailureEvent(ctx context.Context, tx *sql.Tx, payment *domain.Payment, reason string, now time.Time) error {
	failed := domain.PaymentFailedEvent{
		PaymentID: payment.ID,
		OrderCode: payment.OrderCode,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Reason:    reason,
		Timestamp: now,
	}
	return s.appendOutboxEvent(ctx, tx, payment.ID, domain.TopicPaymentFailed, failed, now)
}

func (s *paymentService) appendOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload any, now time.Time) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	event := &domain.OutboxEvent{
		ID:            util.NewID(),
		AggregateID:   aggregateID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     eventType,
		Payload:       encoded,
		Status:        domain.OutboxStatusPending,
		RetryCount:    0,
		MaxRetry:      domain.DefaultMaxRetry,
		CreatedAt:     now,
	}
	if err := s.outboxRepo.CreateEventTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to append %s outbox event: %w", eventType, err)
	}
	return nil
}

// RefundPayment is the administrative SUCCESS -> REFUNDED transition, the
// only edge out of a terminal state.
func (s *paymentService) RefundPayment(ctx context.Context, orderCode int64, reason string) (*domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	payment, err := s.paymentRepo.GetByOrderCodeTx(ctx, tx, orderCode)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !payment.CanTransition(domain.PaymentStatusRefunded) {
		tx.Rollback()
		return nil, fmt.Errorf("cannot refund payment in status %s: %w", payment.Status, domain.ErrInvalidTransition)
	}

	now := time.Now()
	payment.Status = domain.PaymentStatusRefunded
	if err := s.paymentRepo.UpdateStatusTx(ctx, tx, payment); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to mark payment %s refunded: %w", payment.ID, err)
	}

	refunded := domain.PaymentRefundedEvent{
		PaymentID: payment.ID,
		OrderCode: payment.OrderCode,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Reason:    reason,
		Timestamp: now,
	}
	if err := s.appendOutboxEvent(ctx, tx, payment.ID, domain.TopicPaymentRefunded, refunded, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund transaction: %w", err)
	}

	s.logger.Info("Payment refunded",
		zap.String("payment_id", payment.ID),
		zap.Int64("order_code", orderCode),
		zap.String("reason", reason))
	return payment, nil
}

func (s *paymentService) GetPaymentByOrderCode(ctx context.Context, orderCode int64) (*domain.Payment, error) {
	return s.paymentRepo.GetByOrderCodeTx(ctx, s.db, orderCode)
}

func (s *paymentService) generateOrderCode(ctx context.Context) (int64, error) {
	for i := 0; i < 5; i++ {
		orderCode := 1000000 + rand.Int63n(9000000)
		_, err := s.paymentRepo.GetByOrderCodeTx(ctx, s.db, orderCode)
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return orderCode, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to check order code uniqueness: %w", err)
		}
	}
	return 0, errors.New("failed to allocate a unique order code")
}

// mapWebhookCode translates the gateway's result code to an internal status.
// Pending/processing codes leave the payment unchanged; anything unrecognized
// is treated as a failure.
func mapWebhookCode(code string) (domain.PaymentStatus, bool) {
	switch code {
	case payos.CodeSuccess:
		return domain.PaymentStatusSuccess, true
	case payos.CodeCancelled:
		return domain.PaymentStatusCancelled, true
	case payos.CodePending, payos.CodeProcessing:
		return "", false
	default:
		return domain.PaymentStatusFailed, true
	}
}
