package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/participation-cli/internal/model"
)

func newTestSQLite(t *testing.T, ledgerID string) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"), "participation_ledger", ledgerID)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteStore_EmptyIsNotFound(t *testing.T) {
	st := newTestSQLite(t, "spring")
	_, err := st.Load(context.Background())
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestSQLiteStore_SaveLoadWithExtras(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t, "spring")

	l := &Ledger{
		Columns: append(append([]string(nil), model.CoreColumns...), "Section", "Notes"),
		Rows: []Row{
			{"Student": "Ana", "Week": "Week 1", "Topic": "N/A", "Participation": "2", "Attendance": "Present", "Notes": "asked about maps"},
			{"Student": "Ben", "Week": "Week 1", "Topic": "N/A", "Participation": "0", "Attendance": "Absent"},
		},
	}
	run := &model.Run{
		ID:         "8c6f8c4e-1d0e-4bd5-9b7f-3e7d2f4c9a11",
		Source:     "roster.xlsx",
		Mode:       model.RunModeFull,
		Weeks:      []string{"Week 1"},
		BatchSize:  2,
		LedgerSize: 2,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.Save(ctx, l, run))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Student", "Week", "Date", "Topic", "Participation", "Attendance", "Notes"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "asked about maps", got.Rows[0]["Notes"])
	_, ok := got.Rows[0][model.ColDate]
	assert.False(t, ok)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, []string{"Week 1"}, runs[0].Weeks)
	assert.Equal(t, model.RunModeFull, runs[0].Mode)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t, "spring")

	require.NoError(t, st.Save(ctx, FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 1, model.StatusPresent),
		rec("Ben", "Week 1", 1, model.StatusPresent),
	}), nil))
	require.NoError(t, st.Save(ctx, FromRecords([]model.ParticipationRecord{
		rec("Ana", "Week 1", 4, model.StatusPresent),
	}), nil))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "4", got.Rows[0][model.ColParticipation])
}

func TestSQLiteStore_LedgersAreIsolated(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	a, err := NewSQLite(dsn, "participation_ledger", "a")
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck
	require.NoError(t, a.Migrate(ctx))

	b, err := NewSQLite(dsn, "participation_ledger", "b")
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck

	require.NoError(t, a.Save(ctx, FromRecords([]model.ParticipationRecord{rec("Ana", "Week 1", 1, model.StatusPresent)}), nil))

	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, ErrLedgerNotFound)
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestSQLiteStore_RejectsBadParticipation(t *testing.T) {
	st := newTestSQLite(t, "spring")
	l := New()
	l.Rows = []Row{{"Student": "Ana", "Week": "Week 1", "Participation": "lots"}}
	err := st.Save(context.Background(), l, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}
