package ledger

import "database/sql"

// ScanSummary folds rows of (outcome, count, fragments, chars) into a Summary.
func ScanSummary(rows *sql.Rows) (Summary, error) {
	summary := Summary{Outcomes: make(map[Outcome]int64)}
	for rows.Next() {
		var (
			outcome          string
			count, frag, chr int64
		)
		if err := rows.Scan(&outcome, &count, &frag, &chr); err != nil {
			return Summary{}, err
		}
		summary.Outcomes[Outcome(outcome)] = count
		summary.Relays += count
		summary.Fragments += frag
		summary.Chars += chr
	}
	return summary, rows.Err()
}

// ScanEntries reads rows selected in Entry column order.
func ScanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.RelayID, &e.Model, &outcome, &e.Fragments, &e.Chars, &e.SkippedLines, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
