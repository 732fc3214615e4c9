package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/tokligence/chatrelay/internal/ledger"
)

// Store implements ledger.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite ledger path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY under the async writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
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
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	relay_id TEXT NOT NULL,
	model TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('done','incomplete','upstream_error','canceled')),
	fragments INTEGER NOT NULL DEFAULT 0,
	chars INTEGER NOT NULL DEFAULT 0,
	skipped_lines INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_relay_entries_created ON relay_entries(created_at DESC);
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
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
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
SELECT id, relay_id, model, outcome, fragments, chars, skipped_lines, duration_ms, created_at
FROM relay_entries
ORDER BY created_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ledger.ScanEntries(rows)
}
