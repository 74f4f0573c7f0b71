package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// migrations are applied in order; user_version records how many have run.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		url         TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		steps       INTEGER NOT NULL DEFAULT 0,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC)`,
}

// SQLiteStore is the SQLite Repository.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	memory := path == ":memory:"
	if !memory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteStore{db: db, log: logger.Named("store")}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(sqliteMigrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqliteMigrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run schemas.RunRecord) error {
	run, err := prepare(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, url, status, error, steps, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			steps = excluded.steps,
			finished_at = excluded.finished_at`,
		run.ID, string(run.Kind), run.URL, string(run.Status), run.Error, run.Steps,
		toMillis(run.StartedAt), toMillis(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.log.Debug("Run recorded", zap.String("run_id", run.ID), zap.String("kind", string(run.Kind)))
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, url, status, error, steps, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limitOrDefault(limit))
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
