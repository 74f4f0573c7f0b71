// File: cmd/history_test.go
package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/store"
)

func TestHistoryCmd_Disabled(t *testing.T) {
	setTestEnv(t)

	_, err := executeCommand(t, "", "history")

	assert.EqualError(t, err, "run history is disabled (set store.enabled to true)")
}

func TestHistoryCmd_ListsRuns(t *testing.T) {
	dir := setTestEnv(t)
	dsn := filepath.Join(dir, "history.db")
	t.Setenv("OTHELLO_STORE_ENABLED", "true")

	t.Run("empty", func(t *testing.T) {
		out, err := executeCommand(t, "", "history")
		require.NoError(t, err)
		assert.Equal(t, "No runs recorded\n", out)
	})

	ctx := context.Background()
	repo, err := store.Open(ctx, config.StoreConfig{Enabled: true, DSN: dsn}, zaptest.NewLogger(t))
	require.NoError(t, err)
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []schemas.RunKind{schemas.RunExplore, schemas.RunReplay} {
		run := schemas.RunRecord{
			Kind:       kind,
			URL:        "https://example.com",
			Status:     schemas.RunSucceeded,
			Steps:      3,
			StartedAt:  started.Add(time.Duration(i) * time.Minute),
			FinishedAt: started.Add(time.Duration(i)*time.Minute + 4*time.Second),
		}
		require.NoError(t, repo.RecordRun(ctx, run))
	}
	require.NoError(t, repo.Close())

	t.Run("newest first with limit", func(t *testing.T) {
		out, err := executeCommand(t, "", "history", "-n", "1")

		require.NoError(t, err)
		assert.Contains(t, out, "STARTED")
		assert.Contains(t, out, string(schemas.RunReplay))
		assert.NotContains(t, out, string(schemas.RunExplore))
		assert.Contains(t, out, "4s")
	})
}

func TestRecordRun(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	logger := zaptest.NewLogger(t)
	repo, err := store.Open(context.Background(), config.StoreConfig{Enabled: true, DSN: dsn}, logger)
	require.NoError(t, err)
	defer repo.Close()

	comps := &components{logger: logger, store: repo}
	// A cancelled run ctx must not prevent the history write.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	comps.recordRun(ctx, schemas.RunExplore, "https://example.com", time.Now(), 2, context.Canceled)

	runs, err := repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, schemas.RunFailed, runs[0].Status)
	assert.Equal(t, "context canceled", runs[0].Error)
	assert.Equal(t, 2, runs[0].Steps)

	(&components{logger: logger}).recordRun(context.Background(), schemas.RunReplay, "", time.Now(), 0, nil)
}
