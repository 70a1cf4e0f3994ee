package payments_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"payments/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, order_code, user_id, amount, currency, description, status,
		payment_url, provider_transaction_id, reference_code, created_at, updated_at, paid_at, cancelled_at`

func (r *paymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := querier.ExecContext(ctx, query,
		payment.ID,
		payment.OrderCode,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.Description,
		payment.Status,
		payment.PaymentURL,
		nullString(payment.ProviderTransactionID),
		payment.ReferenceCode,
		payment.CreatedAt,
		payment.UpdatedAt,
		nullTime(payment.PaidAt),
		nullTime(payment.CancelledAt),
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return domain.ErrPaymentAlreadyExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// Single-row lookups lock the row. Concurrent webhook deliveries for the
// same payment serialize here, so the duplicate and transition checks in the
// service see post-commit state rather than a shared snapshot.
func (r *paymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.scanOne(querier.QueryRowContext(ctx, query, id))
}

func (r *paymentRepository) GetByOrderCodeTx(ctx context.Context, querier domain.Querier, orderCode int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_code = $1 FOR UPDATE`
	return r.scanOne(querier.QueryRowContext(ctx, query, orderCode))
}

func (r *paymentRepository) GetByProviderTransactionIDTx(ctx context.Context, querier domain.Querier, providerTxID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_transaction_id = $1 FOR UPDATE`
	return r.scanOne(querier.QueryRowContext(ctx, query, providerTxID))
}

func (r *paymentRepository) FindPendingByAmountAndDescriptionTx(ctx context.Context, querier domain.Querier, amount int64, description string) (*domain.Payment, error) {
	// Oldest matching PENDING payment wins; deterministic tie-break for
	// webhooks that echo neither correlation id nor order code. left() keeps
	// the prefix comparison literal, so %/_ in stored descriptions never act
	// as wildcards.
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND amount = $2 AND left($3, length(description)) = description
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`
	return r.scanOne(querier.QueryRowContext(ctx, query, domain.PaymentStatusPending, amount, description))
}

func (r *paymentRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, provider_transaction_id = $2, updated_at = $3, paid_at = $4, cancelled_at = $5
		WHERE id = $6
	`
	res, err := querier.ExecContext(ctx, query,
		payment.Status,
		nullString(payment.ProviderTransactionID),
		time.Now(),
		nullTime(payment.PaidAt),
		nullTime(payment.CancelledAt),
		payment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status %s: %w", payment.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payment status update: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) FindByStatusUpdatedBefore(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	rows, err := querier.QueryContext(ctx, query, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments by status %s: %w", status, err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) CountByStatusCreatedAfter(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM payments WHERE status = $1 AND created_at > $2`
	var count int64
	if err := querier.QueryRowContext(ctx, query, status, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payments by status %s: %w", status, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *paymentRepository) scanOne(row *sql.Row) (*domain.Payment, error) {
	payment, err := r.scanRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) scanRow(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var providerTxID sql.NullString
	var paidAt, cancelledAt sql.NullTime
	err := row.Scan(
		&payment.ID,
		&payment.OrderCode,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Description,
		&payment.Status,
		&payment.PaymentURL,
		&providerTxID,
		&payment.ReferenceCode,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&paidAt,
		&cancelledAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if providerTxID.Valid {
		payment.ProviderTransactionID = providerTxID.String
	}
	if paidAt.Valid {
		payment.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		payment.CancelledAt = &cancelledAt.Time
	}
	return payment, nil
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
