package domain

import (
	"math"
	"time"
)

type OutboxEventStatus string

const (
	OutboxStatusPending   OutboxEventStatus = "PENDING"
	OutboxStatusPublished OutboxEventStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxEventStatus = "FAILED"
)

// DefaultMaxRetry bounds publish attempts before an event is parked for
// operator intervention.
const DefaultMaxRetry = 5

// OutboxEvent is an at-least-once delivery record written in the same
// transaction as the business change it describes.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	Status        OutboxEventStatus
	RetryCount    int
	MaxRetry      int
	LastError     string
	NextRetryAt   *time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time
}

// CanRetry reports whether the event is still eligible for another publish
// attempt.
func (e *OutboxEvent) CanRetry() bool {
	return e.RetryCount < e.MaxRetry
}

// ScheduleNextRetry increments the retry counter and, while attempts remain,
// sets the next attempt time using exponential backoff of 2^retryCount
// seconds. Once the budget is exhausted the event keeps status FAILED with no
// next_retry_at, excluding it from future selection.
func (e *OutboxEvent) ScheduleNextRetry(now time.Time) {
	e.RetryCount++
	e.Status = OutboxStatusFailed
	if e.RetryCount < e.MaxRetry {
		next := now.Add(time.Duration(math.Pow(2, float64(e.RetryCount))) * time.Second)
		e.NextRetryAt = &next
	} else {
		e.NextRetryAt = nil
	}
}

// MarkPublished finalizes the event; a published event is immutable until
// retention cleanup deletes it.
func (e *OutboxEvent) MarkPublished(now time.Time) {
	e.Status = OutboxStatusPublished
	e.PublishedAt = &now
	e.NextRetryAt = nil
}
