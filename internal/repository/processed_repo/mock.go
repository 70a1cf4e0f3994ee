package processed_repo

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"payments/internal/domain"
)

// MockProcessedEventRepository is a testify mock of ProcessedEventRepository.
type MockProcessedEventRepository struct {
	mock.Mock
}

func (m *MockProcessedEventRepository) Exists(ctx context.Context, querier domain.Querier, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, querier, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcessedEventRepository) Create(ctx context.Context, querier domain.Querier, event *domain.ProcessedEvent) error {
	args := m.Called(ctx, querier, event)
	return args.Error(0)
}

func (m *MockProcessedEventRepository) DeleteProcessedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, querier, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProcessedEventRepository) FindRecentFailures(ctx context.Context, querier domain.Querier, since time.Time) ([]*domain.ProcessedEvent, error) {
	args := m.Called(ctx, querier, since)
	if events, ok := args.Get(0).([]*domain.ProcessedEvent); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}
