package store

import (
	"path/filepath"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	for _, dsn := range []string{
		"sqlite://" + filepath.Join(t.TempDir(), "a", "ledger.db"),
		filepath.Join(t.TempDir(), "ledger.db"),
	} {
		s, kind, err := Open(dsn)
		if err != nil {
			t.Fatalf("Open(%q): %v", dsn, err)
		}
		if kind != "sqlite" {
			t.Fatalf("expected sqlite backend, got %q", kind)
		}
		_ = s.Close()
	}
}

func TestOpenRejects(t *testing.T) {
	for _, dsn := range []string{"", "mysql://root@localhost/relay", "sqlite://"} {
		if _, _, err := Open(dsn); err == nil {
			t.Fatalf("expected error for %q", dsn)
		}
	}
}
