// Package store keeps the run history in SQLite or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
)

// DefaultListLimit bounds ListRuns when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Repository records finished runs and lists the most recent ones.
type Repository interface {
	RecordRun(ctx context.Context, run schemas.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error)
	Close() error
}

// Open connects the repository selected by cfg.DSN and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Repository, error) {
	if cfg.IsPostgres() {
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		s.closer = pool.Close
		return s, nil
	}
	return NewSQLite(ctx, cfg.DSN, logger)
}

// prepare fills the id and normalises timestamps to UTC.
func prepare(run schemas.RunRecord) (schemas.RunRecord, error) {
	if run.Kind == "" {
		return run, fmt.Errorf("run kind is required")
	}
	if run.Status == "" {
		return run, fmt.Errorf("run status is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return run, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
