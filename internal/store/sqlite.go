package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			trigger_value TEXT NOT NULL,
			action_name TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL,
			next_run_unix INTEGER,
			last_run_unix INTEGER,
			fired_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at_unix INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_due
			ON scheduled_tasks(status, next_run_unix);`,
		`CREATE TABLE IF NOT EXISTS pending_confirmations (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			arguments TEXT NOT NULL,
			status TEXT NOT NULL,
			decision TEXT,
			result TEXT,
			created_at_unix INTEGER NOT NULL,
			expires_at_unix INTEGER NOT NULL,
			resolved_at_unix INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_confirmations_open
			ON pending_confirmations(status, expires_at_unix);`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTimeUnix(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Unix()
}

func timeFromUnix(value sql.NullInt64) time.Time {
	if !value.Valid || value.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(value.Int64, 0).UTC()
}
