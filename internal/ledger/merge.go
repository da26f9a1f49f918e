package ledger

import (
	"github.com/sells-group/participation-cli/internal/model"
)

// MergeStats describes what a merge did.
type MergeStats struct {
	Existing int `json:"existing"`
	Batch    int `json:"batch"`
	Added    int `json:"added"`    // keys new to the ledger
	Replaced int `json:"replaced"` // existing keys overwritten by the batch
	Result   int `json:"result"`
}

// Merge combines existing and batch into a new ledger. Columns are the union of both
// inputs, existing order first; a row without a value for a column keeps it null.
// Rows are concatenated existing-then-batch and, for each (student, week), only the
// last one survives, so batch rows supersede older ones and re-running a batch is a
// no-op. Keys compare with surrounding whitespace trimmed and are stored trimmed. The result is sorted with Sort. Neither input is modified.
func Merge(existing, batch *Ledger) (*Ledger, MergeStats) {
	if existing == nil {
		existing = New()
	}
	if batch == nil {
		batch = New()
	}

	out := &Ledger{Columns: unionColumns(existing.Columns, batch.Columns)}
	stats := MergeStats{Existing: len(existing.Rows), Batch: len(batch.Rows)}

	all := make([]Row, 0, len(existing.Rows)+len(batch.Rows))
	all = append(all, existing.Rows...)
	all = append(all, batch.Rows...)

	last := make(map[model.Key]int, len(all))
	for i, row := range all {
		last[row.Key()] = i
	}

	inExisting := make(map[model.Key]bool, len(existing.Rows))
	for _, row := range existing.Rows {
		inExisting[row.Key()] = true
	}
	counted := make(map[model.Key]bool, len(batch.Rows))
	for _, row := range batch.Rows {
		k := row.Key()
		if counted[k] {
			continue
		}
		counted[k] = true
		if inExisting[k] {
			stats.Replaced++
		} else {
			stats.Added++
		}
	}

	out.Rows = make([]Row, 0, len(last))
	for i, row := range all {
		if last[row.Key()] == i {
			r := row.clone()
			r.normalizeKey()
			out.Rows = append(out.Rows, r)
		}
	}
	out.Sort()

	stats.Result = len(out.Rows)
	return out, stats
}

func unionColumns(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
