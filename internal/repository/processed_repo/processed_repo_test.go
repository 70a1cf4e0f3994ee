package processed_repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payments/internal/domain"
)

func newRepoFixture(t *testing.T) (ProcessedEventRepository, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewProcessedEventRepository(db), db, dbMock
}

func TestExists(t *testing.T) {
	repo, db, dbMock := newRepoFixture(t)

	dbMock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("evt-1", "user.registered").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), db, "evt-1", "user.registered")

	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateMapsDuplicateMarker(t *testing.T) {
	repo, db, dbMock := newRepoFixture(t)

	dbMock.ExpectExec(`INSERT INTO processed_events`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), db, &domain.ProcessedEvent{
		ID:          "marker-1",
		EventID:     "evt-1",
		EventType:   "user.registered",
		Result:      domain.ProcessingResultSuccess,
		ProcessedAt: time.Now(),
	})

	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
}

func TestDeleteProcessedBefore(t *testing.T) {
	repo, db, dbMock := newRepoFixture(t)

	dbMock.ExpectExec(`DELETE FROM processed_events WHERE processed_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := repo.DeleteProcessedBefore(context.Background(), db, time.Now().Add(-30*24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
}
