package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/repository/outbox_repo"
)

type fakeProducer struct {
	failTopics map[string]error
	published  []string
}

func (p *fakeProducer) Produce(ctx context.Context, topic string, key, message []byte) error {
	if err, ok := p.failTopics[topic]; ok {
		return err
	}
	p.published = append(p.published, topic)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type publisherFixture struct {
	publisher  *Publisher
	dbMock     sqlmock.Sqlmock
	outboxRepo *outbox_repo.MockOutboxRepository
	producer   *fakeProducer
}

func newPublisherFixture(t *testing.T) *publisherFixture {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &publisherFixture{
		dbMock:     dbMock,
		outboxRepo: &outbox_repo.MockOutboxRepository{},
		producer:   &fakeProducer{failTopics: map[string]error{}},
	}
	f.publisher = NewPublisher(db, f.outboxRepo, f.producer, Config{
		PollInterval: time.Second,
		BatchSize:    50,
	}, zap.NewNop())
	return f
}

func pendingEvent(id, eventType string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		AggregateID:   "pay-1",
		AggregateType: domain.AggregateTypePayment,
		EventType:     eventType,
		Payload:       []byte(`{"payment_id":"pay-1"}`),
		Status:        domain.OutboxStatusPending,
		MaxRetry:      domain.DefaultMaxRetry,
		CreatedAt:     time.Now().Add(-time.Minute),
	}
}

func TestPublishPendingEventsMarksPublished(t *testing.T) {
	f := newPublisherFixture(t)
	event := pendingEvent("evt-1", domain.TopicPaymentCompleted)

	f.dbMock.ExpectBegin()
	f.outboxRepo.On("GetEligibleEvents", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*domain.OutboxEvent{event}, nil)
	f.outboxRepo.On("UpdateEventTx", mock.Anything, mock.Anything, event).Return(nil)
	f.dbMock.ExpectCommit()

	err := f.publisher.PublishPendingEvents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusPublished, event.Status)
	assert.NotNil(t, event.PublishedAt)
	assert.Nil(t, event.NextRetryAt)
	assert.Equal(t, []string{domain.TopicPaymentCompleted}, f.producer.published)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
	f.outboxRepo.AssertExpectations(t)
}

func TestPublishFailureSchedulesRetryWithBackoff(t *testing.T) {
	f := newPublisherFixture(t)
	event := pendingEvent("evt-1", domain.TopicPaymentCompleted)
	f.producer.failTopics[domain.TopicPaymentCompleted] = errors.New("broker unavailable")

	f.dbMock.ExpectBegin()
	f.outboxRepo.On("GetEligibleEvents", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*domain.OutboxEvent{event}, nil)
	f.outboxRepo.On("UpdateEventTx", mock.Anything, mock.Anything, event).Return(nil)
	f.dbMock.ExpectCommit()

	err := f.publisher.PublishPendingEvents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusFailed, event.Status)
	assert.Equal(t, 1, event.RetryCount)
	assert.Equal(t, "broker unavailable", event.LastError)
	require.NotNil(t, event.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), *event.NextRetryAt, time.Second)
}

func TestPublishFailureParksAfterMaxRetry(t *testing.T) {
	f := newPublisherFixture(t)
	event := pendingEvent("evt-1", domain.TopicPaymentCompleted)
	event.Status = domain.OutboxStatusFailed
	event.RetryCount = domain.DefaultMaxRetry - 1
	f.producer.failTopics[domain.TopicPaymentCompleted] = errors.New("broker unavailable")

	f.dbMock.ExpectBegin()
	f.outboxRepo.On("GetEligibleEvents", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*domain.OutboxEvent{event}, nil)
	f.outboxRepo.On("UpdateEventTx", mock.Anything, mock.Anything, event).Return(nil)
	f.dbMock.ExpectCommit()

	err := f.publisher.PublishPendingEvents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusFailed, event.Status)
	assert.Equal(t, domain.DefaultMaxRetry, event.RetryCount)
	assert.Nil(t, event.NextRetryAt)
	assert.False(t, event.CanRetry())
}

func TestOneFailureDoesNotBlockBatch(t *testing.T) {
	f := newPublisherFixture(t)
	failing := pendingEvent("evt-1", domain.TopicPaymentFailed)
	healthy := pendingEvent("evt-2", domain.TopicPaymentCompleted)
	f.producer.failTopics[domain.TopicPaymentFailed] = errors.New("broker unavailable")

	f.dbMock.ExpectBegin()
	f.outboxRepo.On("GetEligibleEvents", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*domain.OutboxEvent{failing, healthy}, nil)
	f.outboxRepo.On("UpdateEventTx", mock.Anything, mock.Anything, failing).Return(nil)
	f.outboxRepo.On("UpdateEventTx", mock.Anything, mock.Anything, healthy).Return(nil)
	f.dbMock.ExpectCommit()

	err := f.publisher.PublishPendingEvents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusFailed, failing.Status)
	assert.Equal(t, domain.OutboxStatusPublished, healthy.Status)
	f.outboxRepo.AssertExpectations(t)
}

func TestPublishNothingEligible(t *testing.T) {
	f := newPublisherFixture(t)

	f.dbMock.ExpectBegin()
	f.outboxRepo.On("GetEligibleEvents", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*domain.OutboxEvent{}, nil)
	f.dbMock.ExpectRollback()

	err := f.publisher.PublishPendingEvents(context.Background())

	require.NoError(t, err)
	assert.Empty(t, f.producer.published)
	f.outboxRepo.AssertNotCalled(t, "UpdateEventTx", mock.Anything, mock.Anything, mock.Anything)
}
