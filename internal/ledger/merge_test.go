package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/participation-cli/internal/model"
)

func keys(l *Ledger) []model.Key {
	out := make([]model.Key, 0, len(l.Rows))
	for _, r := range l.Rows {
		out = append(out, r.Key())
	}
	return out
}

func TestMerge_EmptyExisting(t *testing.T) {
	batch := FromRecords([]model.ParticipationRecord{
		rec("Ben", "Week 1", 0, model.StatusAbsent),
		rec("Ana", "Week 1", 2, model.StatusPresent),
	})

	out, stats := Merge(nil, batch)
	assert.Equal(t, []model.Key{{Student: "Ana", Week: "Week 1"}, {Student: "Ben", Week: "Week 1"}}, keys(out))
	assert.Equal(t, MergeStats{Existing: 0, Batch: 2, Added: 2, Replaced: 0, Result: 2}, stats)
}

func TestMerge_BatchWins(t *testing.T) {
	existing := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 0, model.StatusAbsent),
		rec("Ana", "Week 2", 1, model.StatusPresent),
	})
	batch := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 3, model.StatusPresent),
	})

	out, stats := Merge(existing, batch)
	recs, err := out.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].Participation)
	assert.Equal(t, model.StatusPresent, recs[0].Attendance)
	assert.Equal(t, 1, stats.Replaced)
	assert.Equal(t, 0, stats.Added)

	// Inputs untouched.
	assert.Equal(t, "0", existing.Rows[0][model.ColParticipation])
}

func TestMerge_KeysCompareTrimmed(t *testing.T) {
	existing := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 1, model.StatusPresent),
	})
	batch := &Ledger{
		Columns: append([]string(nil), model.CoreColumns...),
		Rows: []Row{{
			model.ColStudent:       " Ana ",
			model.ColWeek:          "Week 1 ",
			model.ColParticipation: "3",
			model.ColAttendance:    "Present",
		}},
	}

	out, stats := Merge(existing, batch)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, MergeStats{Existing: 1, Batch: 1, Replaced: 1, Result: 1}, stats)
	assert.Equal(t, "Ana", out.Rows[0][model.ColStudent])
	assert.Equal(t, "Week 1", out.Rows[0][model.ColWeek])
	assert.Equal(t, "3", out.Rows[0][model.ColParticipation])

	// The batch row itself is not rewritten.
	assert.Equal(t, " Ana ", batch.Rows[0][model.ColStudent])
}

func TestMerge_LastDuplicateInBatchWins(t *testing.T) {
	batch := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 1, model.StatusPresent),
		rec("Ana", "Week 1", 4, model.StatusPresent),
	})
	out, stats := Merge(New(), batch)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "4", out.Rows[0][model.ColParticipation])
	assert.Equal(t, 1, stats.Added)
}

func TestMerge_Idempotent(t *testing.T) {
	existing := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 1, model.StatusPresent),
		rec("Cy", "Week 2", 0, model.StatusExcused),
	})
	batch := FromRecords([]model.ParticipationRecord{
		rec("Ben", "Week 2", 2, model.StatusPresent),
		rec("Ana", "Week 1", 2, model.StatusPresent),
	})

	once, _ := Merge(existing, batch)
	twice, stats := Merge(once, batch)
	assert.Equal(t, once, twice)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 2, stats.Replaced)
}

func TestMerge_KeysUnique(t *testing.T) {
	existing := FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 1, model.StatusPresent),
		rec("Ana", "Week 1", 1, model.StatusPresent),
		rec("Ben", "Week 1", 1, model.StatusPresent),
	})
	batch := FromRecords([]model.ParticipationRecord{
		rec("Ben", "Week 1", 2, model.StatusPresent),
		rec("Ben", "Week 2", 2, model.StatusPresent),
	})
	out, _ := Merge(existing, batch)

	seen := map[model.Key]bool{}
	for _, k := range keys(out) {
		assert.False(t, seen[k], "duplicate key %v", k)
		seen[k] = true
	}
	assert.Len(t, seen, 3)
}

func TestMerge_ColumnUnion(t *testing.T) {
	existing := &Ledger{
		Columns: []string{"Student", "Week", "Participation", "Attendance", "Notes"},
		Rows: []Row{
			{"Student": "Ana", "Week": "Week 1", "Participation": "1", "Attendance": "Present", "Notes": "late join"},
		},
	}
	batch := FromRecords([]model.ParticipationRecord{rec("Ben", "Week 1", 0, model.StatusAbsent)})

	out, _ := Merge(existing, batch)
	assert.Equal(t, []string{"Student", "Week", "Participation", "Attendance", "Notes", "Date", "Topic"}, out.Columns)
	assert.Equal(t, "late join", out.Rows[0]["Notes"])
	_, ok := out.Rows[1]["Notes"]
	assert.False(t, ok, "batch rows leave extra columns null")
	_, ok = out.Rows[0]["Topic"]
	assert.False(t, ok, "existing rows leave new columns null")
}

func TestMerge_ReplacedRowDropsExtraValue(t *testing.T) {
	existing := &Ledger{
		Columns: []string{"Student", "Week", "Participation", "Attendance", "Notes"},
		Rows: []Row{
			{"Student": "Ana", "Week": "Week 1", "Participation": "1", "Attendance": "Present", "Notes": "old"},
		},
	}
	batch := FromRecords([]model.ParticipationRecord{rec("Ana", "Week 1", 2, model.StatusPresent)})

	out, _ := Merge(existing, batch)
	require.Equal(t, 1, out.Len())
	_, ok := out.Rows[0]["Notes"]
	assert.False(t, ok)
	assert.Contains(t, out.Columns, "Notes")
}
