package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const pgSchema = `
        CREATE TABLE IF NOT EXISTS runs (
            id          TEXT PRIMARY KEY,
            kind        TEXT NOT NULL,
            url         TEXT NOT NULL DEFAULT '',
            status      TEXT NOT NULL,
            error       TEXT NOT NULL DEFAULT '',
            steps       INTEGER NOT NULL DEFAULT 0,
            started_at  BIGINT NOT NULL,
            finished_at BIGINT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);
    `

// PostgresStore is the PostgreSQL Repository.
type PostgresStore struct {
	pool   DBPool
	log    *zap.Logger
	closer func()
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgres applies the schema and returns the store. The pool is not
// closed by Close unless the store was created by Open.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to migrate run history schema: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store")}, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run schemas.RunRecord) error {
	run, err := prepare(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO runs (id, kind, url, status, error, steps, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            error = EXCLUDED.error,
            steps = EXCLUDED.steps,
            finished_at = EXCLUDED.finished_at;
    `,
		run.ID, string(run.Kind), run.URL, string(run.Status), run.Error, run.Steps,
		toMillis(run.StartedAt), toMillis(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.log.Debug("Run recorded", zap.String("run_id", run.ID), zap.String("kind", string(run.Kind)))
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, kind, url, status, error, steps, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunRecord
	for rows.Next() {
		var (
			r                 schemas.RunRecord
			kind, status      string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &kind, &r.URL, &status, &r.Error, &r.Steps, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Kind = schemas.RunKind(kind)
		r.Status = schemas.RunStatus(status)
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
