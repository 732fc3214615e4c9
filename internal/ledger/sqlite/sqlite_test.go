package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tokligence/chatrelay/internal/ledger"
)

func TestStoreRecordAndSummary(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	record := func(id string, outcome ledger.Outcome, fragments, chars int64) {
		if err := store.Record(ctx, ledger.Entry{
			RelayID:    id,
			Model:      "mistral",
			Outcome:    outcome,
			Fragments:  fragments,
			Chars:      chars,
			DurationMS: 12,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	record("r1", ledger.OutcomeDone, 5, 40)
	record("r2", ledger.OutcomeDone, 3, 10)
	record("r3", ledger.OutcomeIncomplete, 1, 2)

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Relays != 3 || summary.Fragments != 9 || summary.Chars != 52 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Outcomes[ledger.OutcomeDone] != 2 || summary.Outcomes[ledger.OutcomeIncomplete] != 1 {
		t.Fatalf("unexpected outcomes %v", summary.Outcomes)
	}
}

func TestSummaryEmpty(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	summary, err := store.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Relays != 0 || summary.Outcomes == nil {
		t.Fatalf("unexpected empty summary %+v", summary)
	}
}

func TestListRecentOrdering(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	entries := []ledger.Entry{
		{RelayID: "a", Model: "mistral", Outcome: ledger.OutcomeDone, Fragments: 1, CreatedAt: now.Add(-2 * time.Hour)},
		{RelayID: "b", Model: "mistral", Outcome: ledger.OutcomeDone, Fragments: 2, CreatedAt: now.Add(-1 * time.Hour)},
		{RelayID: "c", Model: "mistral", Outcome: ledger.OutcomeCanceled, Fragments: 3, CreatedAt: now},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].RelayID != "c" || recent[1].RelayID != "b" {
		t.Fatalf("unexpected ordering %#v", recent)
	}
	if recent[0].Outcome != ledger.OutcomeCanceled {
		t.Fatalf("unexpected outcome %q", recent[0].Outcome)
	}
}

func TestRecordValidation(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Record(context.Background(), ledger.Entry{Outcome: ledger.OutcomeDone}); err == nil {
		t.Fatalf("expected error for missing relay id")
	}
	if err := store.Record(context.Background(), ledger.Entry{RelayID: "x", Outcome: "unexpected"}); err == nil {
		t.Fatalf("expected error for invalid outcome")
	}
}
