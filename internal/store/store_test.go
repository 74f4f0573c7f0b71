package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
)

func sampleRun(id string, started time.Time) schemas.RunRecord {
	return schemas.RunRecord{
		ID:         id,
		Kind:       schemas.RunExplore,
		URL:        "https://example.com",
		Status:     schemas.RunSucceeded,
		Steps:      3,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, sampleRun("old", base)))
	require.NoError(t, s.RecordRun(ctx, sampleRun("new", base.Add(time.Hour))))

	failed := sampleRun("old", base)
	failed.Status = schemas.RunFailed
	failed.Error = "step 2 (tap): device offline"
	require.NoError(t, s.RecordRun(ctx, failed), "re-recording a run updates it")

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID, "most recent first")
	assert.Equal(t, failed, runs[1])

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_AssignsIDAndValidates(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	run := sampleRun("", time.Now())
	require.NoError(t, s.RecordRun(ctx, run))
	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].ID)

	assert.ErrorContains(t, s.RecordRun(ctx, schemas.RunRecord{Status: schemas.RunFailed}), "kind is required")
	assert.ErrorContains(t, s.RecordRun(ctx, schemas.RunRecord{Kind: schemas.RunReplay}), "status is required")
}

func TestSQLiteStore_OnDiskReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := NewSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(ctx, sampleRun("persisted", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, config.StoreConfig{Enabled: true, DSN: path}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].ID)
}

func TestNewSQLite_EmptyPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), " ", zap.NewNop())
	assert.ErrorContains(t, err, "cannot be empty")
}

func TestPostgresStore(t *testing.T) {
	t.Run("migration failure", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
			WillReturnError(errors.New("permission denied"))

		_, err = NewPostgres(context.Background(), mockPool, zap.NewNop())

		assert.ErrorContains(t, err, "permission denied")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("record and list", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		started := time.UnixMilli(1_700_000_000_000).UTC()
		run := sampleRun("r1", started)

		mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
			WithArgs("r1", "explore", "https://example.com", "succeeded", "", 3,
				started.UnixMilli(), started.Add(time.Minute).UnixMilli()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM runs")).
			WithArgs(DefaultListLimit).
			WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "url", "status", "error", "steps", "started_at", "finished_at"}).
				AddRow("r1", "explore", "https://example.com", "succeeded", "", 3,
					started.UnixMilli(), started.Add(time.Minute).UnixMilli()))

		s, err := NewPostgres(context.Background(), mockPool, zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, s.RecordRun(context.Background(), run))
		runs, err := s.ListRuns(context.Background(), -1)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, run, runs[0])
		assert.NoError(t, s.Close())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM runs")).
			WithArgs(5).
			WillReturnError(errors.New("connection reset"))

		s, err := NewPostgres(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		_, err = s.ListRuns(context.Background(), 5)
		assert.ErrorContains(t, err, "failed to query runs: connection reset")
	})
}
