package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tokligence/chatrelay/internal/ledger"
)

// Store implements ledger.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// PoolConfig tunes the database/sql pool. Zero values keep driver defaults.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// New opens a PostgreSQL-backed ledger store using the provided DSN.
func New(dsn string, pool PoolConfig) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}
	if pool.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.MaxIdleTime)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS relay_entries (
	id BIGSERIAL PRIMARY KEY,
	relay_id UUID NOT NULL,
	model TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('done','incomplete','upstream_error','canceled')),
	fragments BIGINT NOT NULL DEFAULT 0,
	chars BIGINT NOT NULL DEFAULT 0,
	skipped_lines BIGINT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_relay_entries_created ON relay_entries(created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_relay_entries_relay_id ON relay_entries(relay_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a new relay entry.
func (s *Store) Record(ctx context.Context, entry ledger.Entry) error {
	if entry.RelayID == "" {
		return errors.New("ledger record requires relay id")
	}
	if !entry.Outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", entry.Outcome)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO relay_entries(relay_id, model, outcome, fragments, chars, skipped_lines, duration_ms, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (relay_id) DO NOTHING`,
		entry.RelayID,
		entry.Model,
		string(entry.Outcome),
		entry.Fragments,
		entry.Chars,
		entry.SkippedLines,
		entry.DurationMS,
		created,
	)
	return err
}

// Summary aggregates every recorded relay.
func (s *Store) Summary(ctx context.Context) (ledger.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT outcome, COUNT(*), COALESCE(SUM(fragments), 0), COALESCE(SUM(chars), 0)
FROM relay_entries
GROUP BY outcome`)
	if err != nil {
		return ledger.Summary{}, err
	}
	defer rows.Close()
	return ledger.ScanSummary(rows)
}

// ListRecent returns the latest entries.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, relay_id::text, model, outcome, fragments, chars, skipped_lines, duration_ms, created_at
FROM relay_entries
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ledger.ScanEntries(rows)
}
