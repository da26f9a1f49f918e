package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/participation-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Source:     "rosters/fall/section2.xlsx",
			Mode:       model.RunModeFull,
			Weeks:      []string{"Week 1 (9/4)", "Week 2 (9/11)", "Week 3"},
			BatchSize:  90,
			LedgerSize: 90,
			CreatedAt:  now,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			Source:     "/very/long/path/to/the/rosters/of/the/fall/term/section2.xlsx",
			Mode:       model.RunModeWeek,
			Weeks:      []string{"Week 4 (9/25)"},
			BatchSize:  30,
			LedgerSize: 120,
			Replaced:   0,
			CreatedAt:  now.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "MODE")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "3 weeks")
	assert.Contains(t, output, "Week 4 (9/25)")
	assert.Contains(t, output, "...")
	assert.Contains(t, output, "2025-09-15 10:30")
}

func TestSummarizeWeeks(t *testing.T) {
	assert.Equal(t, "-", summarizeWeeks(nil))
	assert.Equal(t, "Week 1", summarizeWeeks([]string{"Week 1"}))
	assert.Equal(t, "Week 1, Week 2", summarizeWeeks([]string{"Week 1", "Week 2"}))
	assert.Equal(t, "4 weeks", summarizeWeeks([]string{"a", "b", "c", "d"}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestRunsCmd_FileDriverHasNoHistory(t *testing.T) {
	useTestConfig(t, "csv")

	_, err := runCmd(t, runsCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not record runs")
}

func TestRunsCmd_SQLite(t *testing.T) {
	useTestConfig(t, "sqlite")
	seedLedger(t)

	out, err := runCmd(t, runsCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "full")
	assert.Contains(t, out, "roster.csv")
	assert.Contains(t, out, "Week 1 (9/4), Week 2 (9/11)")
}
