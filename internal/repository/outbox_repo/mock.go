package outbox_repo

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"payments/internal/domain"
)

// MockOutboxRepository is a testify mock of OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) CreateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error {
	args := m.Called(ctx, querier, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetEligibleEvents(ctx context.Context, querier domain.Querier, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, querier, now, limit)
	if events, ok := args.Get(0).([]*domain.OutboxEvent); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventTx(ctx context.Context, querier domain.Querier, event *domain.OutboxEvent) error {
	args := m.Called(ctx, querier, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) DeletePublishedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, querier, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) CountParkedEvents(ctx context.Context, querier domain.Querier) (int64, error) {
	args := m.Called(ctx, querier)
	return args.Get(0).(int64), args.Error(1)
}
