package roster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/participation-cli/internal/model"
)

func TestParseWeekNumber(t *testing.T) {
	tests := []struct {
		header string
		want   int
		ok     bool
	}{
		{"Week 3 (9/18)", 3, true},
		{"week3", 3, true},
		{"WEEK   12", 12, true},
		{"Week", 0, false},
		{"Week 0", 0, false},
		{"Midterm", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := ParseWeekNumber(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDate(t *testing.T) {
	assert.Equal(t, "9/18", ExtractDate("Week 3 (9/18)"))
	assert.Equal(t, "10/2", ExtractDate("Week 5 ( 10/2 ) (late)"))
	assert.Equal(t, "", ExtractDate("Week 3"))
	assert.Equal(t, "", ExtractDate("Week 3 (9/18"))
	assert.Equal(t, "", ExtractDate("Week 3 )9/18("))
	assert.Equal(t, "", ExtractDate("Week 3 ()"))
}

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "Week 7 (10/16)", WeekLabel(7, "10/16"))
	assert.Equal(t, "Week 7", WeekLabel(7, ""))
}

func TestDetectWeekColumns(t *testing.T) {
	headers := []string{"Week roster name", "Week  1 (9/4)", "Notes", "week 2"}
	weeks := DetectWeekColumns(headers, "")
	require.Len(t, weeks, 2, "the identity column is never a week column")

	assert.Equal(t, model.WeekColumn{Index: 1, Number: 1, Label: "Week 1 (9/4)", Date: "9/4"}, weeks[0])
	assert.Equal(t, model.WeekColumn{Index: 3, Number: 2, Label: "Week 2"}, weeks[1])
	assert.Equal(t, []string{"Week 1 (9/4)", "Week 2"}, Labels(weeks))
}

func TestDetectWeekColumns_CanonicalLabels(t *testing.T) {
	tests := []struct {
		header string
		want   model.WeekColumn
	}{
		{"WEEK 1 (9/4)", model.WeekColumn{Index: 1, Number: 1, Label: "Week 1 (9/4)", Date: "9/4"}},
		{"Week1", model.WeekColumn{Index: 1, Number: 1, Label: "Week 1"}},
		{"week 12 ( 11/20 ) quiz", model.WeekColumn{Index: 1, Number: 12, Label: "Week 12 (11/20)", Date: "11/20"}},
		{"Week of 9/4", model.WeekColumn{Index: 1, Label: "Week of 9/4"}},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			weeks := DetectWeekColumns([]string{"Student", tt.header}, "")
			require.Len(t, weeks, 1)
			assert.Equal(t, tt.want, weeks[0])
		})
	}
}

func TestFindWeek(t *testing.T) {
	weeks := []model.WeekColumn{
		{Index: 1, Number: 1, Label: "Week 1"},
		{Index: 2, Number: 11, Label: "Week 11"},
		{Index: 3, Label: "Bonus week"},
	}

	w, ok := FindWeek(weeks, 11)
	require.True(t, ok)
	assert.Equal(t, 2, w.Index)

	w, ok = FindWeek(weeks, 1)
	require.True(t, ok)
	assert.Equal(t, 1, w.Index)

	_, ok = FindWeek(weeks, 7)
	assert.False(t, ok)
}

func TestTargetWeekMissingError(t *testing.T) {
	err := error(&TargetWeekMissingError{Week: 7, Found: []string{"Week 1", "Week 2"}})
	assert.True(t, errors.Is(err, ErrTargetWeekMissing))
	assert.False(t, errors.Is(err, ErrNoWeekColumns))
	assert.Contains(t, err.Error(), "Week 7")
	assert.Contains(t, err.Error(), "Week 1, Week 2")
}
