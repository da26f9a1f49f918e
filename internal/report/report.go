// Package report aggregates ledger records into leaderboards, averages, and
// attendance breakdowns. It computes data only; rendering is left to callers.
package report

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/roster"
	"github.com/sells-group/participation-cli/internal/scorer"
)

// Lookup errors.
var (
	ErrStudentNotFound = errors.New("report: student not found")
	ErrWeekNotFound    = errors.New("report: week not found")
)

// StudentTotal is a student's summed participation.
type StudentTotal struct {
	Student string `json:"student"`
	Total   int    `json:"total"`
}

// WeekAverage is the mean participation over the records of one week.
type WeekAverage struct {
	Week     string  `json:"week"`
	Average  float64 `json:"average"`
	Students int     `json:"students"`
}

// Counts tallies attendance statuses.
type Counts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Excused int `json:"excused"`
}

// Add counts one status. Values outside the closed set are ignored.
func (c *Counts) Add(s model.Status) {
	switch s {
	case model.StatusPresent:
		c.Present++
	case model.StatusAbsent:
		c.Absent++
	case model.StatusExcused:
		c.Excused++
	}
}

// Total returns the number of counted statuses.
func (c Counts) Total() int { return c.Present + c.Absent + c.Excused }

// Overview is the class-wide report.
type Overview struct {
	Students     int                 `json:"students"`
	WeeksTotal   int                 `json:"weeks_total"`
	Totals       []StudentTotal      `json:"totals"`
	Scores       []model.ScoreResult `json:"scores"`
	WeekAverages []WeekAverage       `json:"week_averages"`
	Attendance   Counts              `json:"attendance"`
}

// StudentSummary is the report for one student.
type StudentSummary struct {
	Student       string                      `json:"student"`
	Total         int                         `json:"total"`
	WeeklyAverage float64                     `json:"weekly_average"`
	WeeksSpoke    int                         `json:"weeks_spoke"`
	WeeksTotal    int                         `json:"weeks_total"`
	Score         float64                     `json:"score"`
	Attendance    Counts                      `json:"attendance"`
	Weeks         []model.ParticipationRecord `json:"weeks"`
}

// WeekSummary is the report for one week.
type WeekSummary struct {
	Week         string         `json:"week"`
	Topic        string         `json:"topic"`
	Participants []StudentTotal `json:"participants"`
	Attendance   Counts         `json:"attendance"`
}

// BuildOverview computes the class-wide report. weeksTotal <= 0 means the number of
// distinct weeks in records.
func BuildOverview(ctx context.Context, records []model.ParticipationRecord, weeksTotal int) (*Overview, error) {
	if weeksTotal <= 0 {
		weeksTotal = scorer.WeeksTotal(records)
	}
	scores, err := scorer.ScoreAll(ctx, records, weeksTotal)
	if err != nil {
		return nil, eris.Wrap(err, "report: score")
	}
	return &Overview{
		Students:     len(scorer.ByStudent(records)),
		WeeksTotal:   weeksTotal,
		Totals:       Totals(records),
		Scores:       scores,
		WeekAverages: WeekAverages(records),
		Attendance:   Attendance(records),
	}, nil
}

// Totals sums participation per student, highest first, ties by name.
func Totals(records []model.ParticipationRecord) []StudentTotal {
	sums := make(map[string]int)
	for _, r := range records {
		sums[r.Student] += r.Participation
	}
	out := make([]StudentTotal, 0, len(sums))
	for s, n := range sums {
		out = append(out, StudentTotal{Student: s, Total: n})
	}
	sortTotals(out)
	return out
}

// WeekAverages returns the mean participation of each week in week order.
func WeekAverages(records []model.ParticipationRecord) []WeekAverage {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range records {
		sums[r.Week] += r.Participation
		counts[r.Week]++
	}
	out := make([]WeekAverage, 0, len(sums))
	for w, n := range counts {
		out = append(out, WeekAverage{Week: w, Average: scorer.Round1(float64(sums[w]) / float64(n)), Students: n})
	}
	sort.Slice(out, func(i, j int) bool { return weekLess(out[i].Week, out[j].Week) })
	return out
}

// Attendance tallies statuses over records.
func Attendance(records []model.ParticipationRecord) Counts {
	var c Counts
	for _, r := range records {
		c.Add(r.Attendance)
	}
	return c
}

// AttendanceByStudent tallies statuses per student.
func AttendanceByStudent(records []model.ParticipationRecord) map[string]Counts {
	out := make(map[string]Counts)
	for _, r := range records {
		c := out[r.Student]
		c.Add(r.Attendance)
		out[r.Student] = c
	}
	return out
}

// AttendanceByWeek tallies statuses per week label.
func AttendanceByWeek(records []model.ParticipationRecord) map[string]Counts {
	out := make(map[string]Counts)
	for _, r := range records {
		c := out[r.Week]
		c.Add(r.Attendance)
		out[r.Week] = c
	}
	return out
}

// Student builds the summary for one student. The name must match exactly.
func Student(records []model.ParticipationRecord, student string, weeksTotal int) (*StudentSummary, error) {
	if weeksTotal <= 0 {
		weeksTotal = scorer.WeeksTotal(records)
	}
	var mine []model.ParticipationRecord
	for _, r := range records {
		if r.Student == student {
			mine = append(mine, r)
		}
	}
	if len(mine) == 0 {
		return nil, eris.Wrapf(ErrStudentNotFound, "report: %q", student)
	}
	sort.SliceStable(mine, func(i, j int) bool { return weekLess(mine[i].Week, mine[j].Week) })

	b := scorer.Compute(mine, weeksTotal)
	s := &StudentSummary{
		Student:    student,
		Total:      b.TotalSpeaks,
		WeeksSpoke: b.SpokeWeeks,
		WeeksTotal: weeksTotal,
		Score:      b.Score,
		Attendance: Attendance(mine),
		Weeks:      mine,
	}
	s.WeeklyAverage = scorer.Round1(float64(s.Total) / float64(len(mine)))
	return s, nil
}

// Week builds the summary for one week, chosen by exact label or by week number
// ("3"). With includeAll, students without a record for the week are listed with 0.
func Week(records []model.ParticipationRecord, week string, includeAll bool) (*WeekSummary, error) {
	label, ok := resolveWeek(records, week)
	if !ok {
		return nil, eris.Wrapf(ErrWeekNotFound, "report: %q", week)
	}

	ws := &WeekSummary{Week: label}
	sums := make(map[string]int)
	for _, r := range records {
		if r.Week != label {
			if includeAll {
				sums[r.Student] += 0
			}
			continue
		}
		if ws.Topic == "" {
			ws.Topic = r.Topic
		}
		sums[r.Student] += r.Participation
		ws.Attendance.Add(r.Attendance)
	}
	for s, n := range sums {
		ws.Participants = append(ws.Participants, StudentTotal{Student: s, Total: n})
	}
	sortTotals(ws.Participants)
	return ws, nil
}

func resolveWeek(records []model.ParticipationRecord, week string) (string, bool) {
	week = strings.TrimSpace(week)
	for _, r := range records {
		if r.Week == week {
			return week, true
		}
	}
	n, err := strconv.Atoi(week)
	if err != nil {
		n, _ = roster.ParseWeekNumber(week)
	}
	if n <= 0 {
		return "", false
	}
	for _, r := range records {
		if got, ok := roster.ParseWeekNumber(r.Week); ok && got == n {
			return r.Week, true
		}
	}
	return "", false
}

func sortTotals(t []StudentTotal) {
	sort.Slice(t, func(i, j int) bool {
		if t[i].Total != t[j].Total {
			return t[i].Total > t[j].Total
		}
		return t[i].Student < t[j].Student
	})
}

// weekLess orders week labels by week number, then label.
func weekLess(a, b string) bool {
	na, _ := roster.ParseWeekNumber(a)
	nb, _ := roster.ParseWeekNumber(b)
	if na != nb {
		return na < nb
	}
	return a < b
}
