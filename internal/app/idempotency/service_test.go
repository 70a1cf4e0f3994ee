package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments/internal/domain"
	"payments/internal/repository/processed_repo"
)

func newGuardFixture(t *testing.T) (Guard, *processed_repo.MockProcessedEventRepository) {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &processed_repo.MockProcessedEventRepository{}
	return NewGuard(db, repo, zap.NewNop()), repo
}

func TestIsProcessed(t *testing.T) {
	guard, repo := newGuardFixture(t)

	repo.On("Exists", mock.Anything, mock.Anything, "evt-1", "user.registered").Return(true, nil)
	repo.On("Exists", mock.Anything, mock.Anything, "evt-2", "user.registered").Return(false, nil)

	seen, err := guard.IsProcessed(context.Background(), "evt-1", "user.registered")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = guard.IsProcessed(context.Background(), "evt-2", "user.registered")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkSuccessRecordsPayloadHash(t *testing.T) {
	guard, repo := newGuardFixture(t)
	payload := []byte(`{"event_id":"evt-1","user_id":"user-1"}`)
	sum := sha256.Sum256(payload)
	wantHash := hex.EncodeToString(sum[:])

	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(e *domain.ProcessedEvent) bool {
		return e.EventID == "evt-1" &&
			e.EventType == "user.registered" &&
			e.SourceService == "user-service" &&
			e.PayloadHash == wantHash &&
			e.Result == domain.ProcessingResultSuccess
	})).Return(nil)

	err := guard.MarkSuccess(context.Background(), "evt-1", "user.registered", "user-service", payload)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMarkProcessedToleratesDuplicateMarker(t *testing.T) {
	guard, repo := newGuardFixture(t)

	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrEventAlreadyProcessed)

	err := guard.MarkSuccess(context.Background(), "evt-1", "user.registered", "user-service", []byte("{}"))

	assert.NoError(t, err)
}

func TestMarkFailedRecordsDetails(t *testing.T) {
	guard, repo := newGuardFixture(t)

	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(e *domain.ProcessedEvent) bool {
		return e.Result == domain.ProcessingResultFailed && e.ResultDetails == "downstream unavailable"
	})).Return(nil)

	err := guard.MarkFailed(context.Background(), "evt-1", "user.registered", "user-service", []byte("{}"), "downstream unavailable")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCleanupOldMarkers(t *testing.T) {
	guard, repo := newGuardFixture(t)
	retention := 30 * 24 * time.Hour

	repo.On("DeleteProcessedBefore", mock.Anything, mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) > retention-time.Minute && time.Since(cutoff) < retention+time.Minute
	})).Return(int64(7), nil)

	deleted, err := guard.CleanupOldMarkers(context.Background(), retention)

	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
