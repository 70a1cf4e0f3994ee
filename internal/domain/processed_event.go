package domain

import "time"

type ProcessingResult string

const (
	ProcessingResultSuccess ProcessingResult = "SUCCESS"
	ProcessingResultFailed  ProcessingResult = "FAILED"
	ProcessingResultSkipped ProcessingResult = "SKIPPED"
)

// ProcessedEvent is the durable idempotency marker for one inbound event.
// (event_id, event_type) is unique.
type ProcessedEvent struct {
	ID            string
	EventID       string
	EventType     string
	SourceService string
	PayloadHash   string
	Result        ProcessingResult
	ResultDetails string
	ProcessedAt   time.Time
}
