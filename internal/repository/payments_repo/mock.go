package payments_repo

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"payments/internal/domain"
)

// MockPaymentRepository is a testify mock of PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	args := m.Called(ctx, querier, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error) {
	args := m.Called(ctx, querier, id)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) GetByOrderCodeTx(ctx context.Context, querier domain.Querier, orderCode int64) (*domain.Payment, error) {
	args := m.Called(ctx, querier, orderCode)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) GetByProviderTransactionIDTx(ctx context.Context, querier domain.Querier, providerTxID string) (*domain.Payment, error) {
	args := m.Called(ctx, querier, providerTxID)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) FindPendingByAmountAndDescriptionTx(ctx context.Context, querier domain.Querier, amount int64, description string) (*domain.Payment, error) {
	args := m.Called(ctx, querier, amount, description)
	if payment, ok := args.Get(0).(*domain.Payment); ok {
		return payment, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	args := m.Called(ctx, querier, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByStatusUpdatedBefore(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	args := m.Called(ctx, querier, status, cutoff, limit)
	if payments, ok := args.Get(0).([]*domain.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentRepository) CountByStatusCreatedAfter(ctx context.Context, querier domain.Querier, status domain.PaymentStatus, since time.Time) (int64, error) {
	args := m.Called(ctx, querier, status, since)
	return args.Get(0).(int64), args.Error(1)
}
