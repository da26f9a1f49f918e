package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/participation-cli/internal/report"
)

func setReportFlags(t *testing.T, student, week string, format string) {
	t.Helper()
	oldStudent, oldWeek, oldAll, oldWeeks, oldFormat := reportStudent, reportWeek, reportIncludeAll, reportWeeks, reportFormat
	reportStudent, reportWeek, reportIncludeAll, reportWeeks, reportFormat = student, week, false, 0, format
	t.Cleanup(func() {
		reportStudent, reportWeek, reportIncludeAll, reportWeeks, reportFormat = oldStudent, oldWeek, oldAll, oldWeeks, oldFormat
	})
}

func TestReportCmd_Overview(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "", "", "json")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)

	var o report.Overview
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	assert.Equal(t, 2, o.Students)
	assert.Equal(t, 2, o.WeeksTotal)
	assert.Equal(t, report.Counts{Present: 1, Absent: 2, Excused: 1}, o.Attendance)
	require.Len(t, o.Totals, 2)
	assert.Equal(t, report.StudentTotal{Student: "Ana", Total: 2}, o.Totals[0])
	require.Len(t, o.WeekAverages, 2)
	assert.Equal(t, 1.0, o.WeekAverages[0].Average)
}

func TestReportCmd_OverviewTable(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "", "", "table")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Students:")
	assert.Contains(t, out, "Week 2 (9/11)")
	assert.Contains(t, out, "52.0")
}

func TestReportCmd_Student(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "Ana", "", "json")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)

	var s report.StudentSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.WeeksSpoke)
	assert.Equal(t, 52.0, s.Score)
	assert.Len(t, s.Weeks, 2)
}

func TestReportCmd_StudentTable(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "Ben", "", "table")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Weeks spoke:")
	assert.Contains(t, out, "0 of 2")
	assert.Contains(t, out, "Excused")
}

func TestReportCmd_UnknownStudent(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "Zed", "", "table")

	_, err := runCmd(t, reportCmd)
	assert.True(t, errors.Is(err, report.ErrStudentNotFound))
}

func TestReportCmd_Week(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "", "1", "json")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)

	var w report.WeekSummary
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, "Week 1 (9/4)", w.Week)
	assert.Equal(t, "Intro", w.Topic)
	assert.Equal(t, []report.StudentTotal{
		{Student: "Ana", Total: 2},
		{Student: "Ben", Total: 0},
	}, w.Participants)
}

func TestReportCmd_WeekTable(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "", "Week 2 (9/11)", "table")

	out, err := runCmd(t, reportCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Topic:")
	assert.Contains(t, out, "N/A")
}

func TestReportCmd_UnknownWeek(t *testing.T) {
	useTestConfig(t, "csv")
	seedLedger(t)
	setReportFlags(t, "", "9", "json")

	_, err := runCmd(t, reportCmd)
	assert.True(t, errors.Is(err, report.ErrWeekNotFound))
}

func TestReportCmd_StudentAndWeekConflict(t *testing.T) {
	useTestConfig(t, "csv")
	setReportFlags(t, "Ana", "1", "table")

	_, err := runCmd(t, reportCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}
