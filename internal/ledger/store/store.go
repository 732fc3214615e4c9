// Package store opens a ledger backend from a DSN.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/tokligence/chatrelay/internal/ledger"
	"github.com/tokligence/chatrelay/internal/ledger/postgres"
	"github.com/tokligence/chatrelay/internal/ledger/sqlite"
)

// Open picks the backend from the DSN scheme: "sqlite://<path>" or "postgres://..."
// ("postgresql://" also accepted). A bare path is treated as sqlite.
func Open(dsn string) (ledger.Store, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, "", fmt.Errorf("ledger: empty dsn")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := postgres.New(dsn, postgres.PoolConfig{
			MaxOpen:     10,
			MaxIdle:     5,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		})
		if err != nil {
			return nil, "", fmt.Errorf("ledger: %w", err)
		}
		return s, "postgres", nil
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	case strings.Contains(dsn, "://"):
		return nil, "", fmt.Errorf("ledger: unsupported dsn scheme in %q", dsn)
	}
	s, err := sqlite.New(dsn)
	if err != nil {
		return nil, "", fmt.Errorf("ledger: %w", err)
	}
	return s, "sqlite", nil
}
