package payments_repo

import (
	"context"
	"time"

	"payments/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error)
	GetByOrderCodeTx(ctx context.Context, querier domain.Querier, orderCode int64) (*domain.Payment, error)
	GetByProviderTransactionIDTx(ctx context.Context, querier domain.Querier, providerTxID string) (*domain.Payment, error)
	// FindPendingByAmountAndDescriptionTx resolves ambiguous webhooks: among
	// PENDING payments with the given amount whose description is a prefix of
	// the webhook description, the oldest one wins.
	FindPendingByAmountAndDescriptionTx(ctx context.Context, querier domain.Querier, amount int64, description string) (*domain.Payment, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	FindByStatusUpdatedBefore(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, cutoff time.Time, limit int) ([]*domain.Payment, error)
	CountByStatusCreatedAfter(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, since time.Time) (int64, error)
}
