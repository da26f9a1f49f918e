// Package scorer derives bounded participation scores from ledger records.
package scorer

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/participation-cli/internal/model"
)

// Score caps and bonus rate.
const (
	MaxScore          = 100.0
	MaxBonus          = 10.0
	BonusPerExtraTurn = 2.0
)

// Breakdown shows how a score was assembled.
type Breakdown struct {
	SpokeWeeks  int     `json:"spoke_weeks"`  // distinct weeks with at least one turn
	TotalSpeaks int     `json:"total_speaks"` // sum of turns over all weeks
	WeeksTotal  int     `json:"weeks_total"`
	Base        float64 `json:"base"`
	Bonus       float64 `json:"bonus"`
	Score       float64 `json:"score"`
}

// Compute scores one student's records against weeksTotal weeks.
//
// Speaking at least once in a week earns that week's share of 100. Each turn beyond
// the first in a week adds BonusPerExtraTurn, up to MaxBonus, and the sum is capped
// at MaxScore. No records or weeksTotal <= 0 scores 0.
func Compute(records []model.ParticipationRecord, weeksTotal int) Breakdown {
	b := Breakdown{WeeksTotal: weeksTotal}
	if len(records) == 0 || weeksTotal <= 0 {
		return b
	}

	spoke := make(map[string]bool, len(records))
	for _, r := range records {
		b.TotalSpeaks += r.Participation
		if r.Participation > 0 {
			spoke[r.Week] = true
		}
	}
	b.SpokeWeeks = len(spoke)

	b.Base = float64(b.SpokeWeeks) / float64(weeksTotal) * 100.0
	extra := math.Max(0, float64(b.TotalSpeaks-b.SpokeWeeks))
	b.Bonus = math.Min(extra*BonusPerExtraTurn, MaxBonus)
	b.Score = Round1(math.Min(b.Base+b.Bonus, MaxScore))
	return b
}

// Score returns Compute(records, weeksTotal).Score.
func Score(records []model.ParticipationRecord, weeksTotal int) float64 {
	return Compute(records, weeksTotal).Score
}

// Round1 rounds to one decimal place, halves to even: 6.25 -> 6.2, 6.35 -> 6.4.
func Round1(x float64) float64 {
	return math.RoundToEven(x*10) / 10
}

// WeeksTotal counts the distinct week labels in records.
func WeeksTotal(records []model.ParticipationRecord) int {
	weeks := make(map[string]struct{}, len(records))
	for _, r := range records {
		weeks[r.Week] = struct{}{}
	}
	return len(weeks)
}

// ByStudent groups records by student, keeping their relative order.
func ByStudent(records []model.ParticipationRecord) map[string][]model.ParticipationRecord {
	out := make(map[string][]model.ParticipationRecord)
	for _, r := range records {
		out[r.Student] = append(out[r.Student], r)
	}
	return out
}

// ScoreAll scores every student in records. weeksTotal <= 0 means the number of
// distinct weeks in records. Results are sorted by score descending, then student.
func ScoreAll(ctx context.Context, records []model.ParticipationRecord, weeksTotal int) ([]model.ScoreResult, error) {
	if weeksTotal <= 0 {
		weeksTotal = WeeksTotal(records)
	}
	groups := ByStudent(records)
	students := make([]string, 0, len(groups))
	for s := range groups {
		students = append(students, s)
	}

	results := make([]model.ScoreResult, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, student := range students {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = model.ScoreResult{Student: student, Score: Score(groups[student], weeksTotal)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortByScore(results)
	return results, nil
}

// sortByScore sorts descending by score, ties by student name.
func sortByScore(scores []model.ScoreResult) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Student < scores[j].Student
	})
}
