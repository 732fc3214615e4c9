package ledger

import (
	"context"
	"database/sql"
	"time"
)

// Outcome mirrors the terminal state of a relay.
type Outcome string

const (
	OutcomeDone          Outcome = "done"
	OutcomeIncomplete    Outcome = "incomplete"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeCanceled      Outcome = "canceled"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeDone, OutcomeIncomplete, OutcomeUpstreamError, OutcomeCanceled:
		return true
	}
	return false
}

// Entry represents a single relay written to the usage ledger.
// Message and response text are never stored.
type Entry struct {
	ID           int64     `json:"id"`
	RelayID      string    `json:"relay_id"`
	Model        string    `json:"model"`
	Outcome      Outcome   `json:"outcome"`
	Fragments    int64     `json:"fragments"`
	Chars        int64     `json:"chars"`
	SkippedLines int64     `json:"skipped_lines"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates relays recorded in the ledger.
type Summary struct {
	Relays    int64             `json:"relays"`
	Fragments int64             `json:"fragments"`
	Chars     int64             `json:"chars"`
	Outcomes  map[Outcome]int64 `json:"outcomes"`
}

// Store defines persistence behaviour for the ledger.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Summary(ctx context.Context) (Summary, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// DBProvider is implemented by stores backed by database/sql; the health checker pings it.
type DBProvider interface {
	DB() *sql.DB
}
