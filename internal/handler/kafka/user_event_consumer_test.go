package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"payments/internal/domain"
)

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) IsProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuard) MarkProcessed(ctx context.Context, eventID, eventType, source string, payload []byte, result domain.ProcessingResult, details string) error {
	return m.Called(ctx, eventID, eventType, source, payload, result, details).Error(0)
}

func (m *MockGuard) MarkSuccess(ctx context.Context, eventID, eventType, source string, payload []byte) error {
	return m.Called(ctx, eventID, eventType, source, payload).Error(0)
}

func (m *MockGuard) MarkFailed(ctx context.Context, eventID, eventType, source string, payload []byte, errMsg string) error {
	return m.Called(ctx, eventID, eventType, source, payload, errMsg).Error(0)
}

func (m *MockGuard) MarkSkipped(ctx context.Context, eventID, eventType, source string, payload []byte, reason string) error {
	return m.Called(ctx, eventID, eventType, source, payload, reason).Error(0)
}

func (m *MockGuard) CleanupOldMarkers(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGuard) AuditRecentFailures(ctx context.Context, window time.Duration) (int, error) {
	args := m.Called(ctx, window)
	return args.Int(0), args.Error(1)
}

func TestUserRegisteredHandlerProcessesNewEvent(t *testing.T) {
	guard := &MockGuard{}
	handler := UserRegisteredMessageHandler(guard, zap.NewNop())

	value := []byte(`{"event_id":"evt-1","user_id":"user-1","username":"alice","email":"alice@example.com"}`)
	guard.On("IsProcessed", mock.Anything, "evt-1", domain.TopicUserRegistered).Return(false, nil)
	guard.On("MarkSuccess", mock.Anything, "evt-1", domain.TopicUserRegistered, domain.SourceServiceUser, value).Return(nil)

	err := handler(context.Background(), kafka.Message{Value: value})

	assert.NoError(t, err)
	guard.AssertExpectations(t)
}

func TestUserRegisteredHandlerSkipsDuplicate(t *testing.T) {
	guard := &MockGuard{}
	handler := UserRegisteredMessageHandler(guard, zap.NewNop())

	value := []byte(`{"event_id":"evt-1","user_id":"user-1"}`)
	guard.On("IsProcessed", mock.Anything, "evt-1", domain.TopicUserRegistered).Return(true, nil)

	err := handler(context.Background(), kafka.Message{Value: value})

	assert.NoError(t, err)
	guard.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserRegisteredHandlerDropsMalformedMessage(t *testing.T) {
	guard := &MockGuard{}
	handler := UserRegisteredMessageHandler(guard, zap.NewNop())

	err := handler(context.Background(), kafka.Message{Value: []byte(`{not json`)})

	assert.NoError(t, err)
	guard.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserRegisteredHandlerDropsEventWithoutID(t *testing.T) {
	guard := &MockGuard{}
	handler := UserRegisteredMessageHandler(guard, zap.NewNop())

	err := handler(context.Background(), kafka.Message{Value: []byte(`{"user_id":"user-1"}`)})

	assert.NoError(t, err)
	guard.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything, mock.Anything)
}
