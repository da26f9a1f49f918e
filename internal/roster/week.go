package roster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/participation-cli/internal/model"
)

var weekNumberRe = regexp.MustCompile(`(?i)week\s*(\d+)`)

// ParseWeekNumber extracts N from headers like "Week N", "week3" or "WEEK 12 (10/2)".
func ParseWeekNumber(header string) (int, bool) {
	m := weekNumberRe.FindStringSubmatch(header)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ExtractDate returns the text between the first "(" and the ")" that follows it.
// A header without a well-formed pair yields "".
func ExtractDate(header string) string {
	open := strings.Index(header, "(")
	if open < 0 {
		return ""
	}
	end := strings.Index(header[open+1:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(header[open+1 : open+1+end])
}

// WeekLabel renders the canonical label for a week number and optional date.
func WeekLabel(number int, date string) string {
	if date == "" {
		return fmt.Sprintf("Week %d", number)
	}
	return fmt.Sprintf("Week %d (%s)", number, date)
}

// DetectWeekColumns returns every column after the first whose header contains marker.
// A header with a week number is labelled WeekLabel(number, date), the same label a
// single-week extraction produces; other headers keep their normalized text.
func DetectWeekColumns(headers []string, marker string) []model.WeekColumn {
	if marker == "" {
		marker = DefaultWeekMarker
	}
	marker = strings.ToLower(marker)

	var weeks []model.WeekColumn
	for i := 1; i < len(headers); i++ {
		label := NormalizeHeader(headers[i])
		if !strings.Contains(strings.ToLower(label), marker) {
			continue
		}
		date := ExtractDate(label)
		number, ok := ParseWeekNumber(label)
		if ok {
			label = WeekLabel(number, date)
		}
		weeks = append(weeks, model.WeekColumn{
			Index:  i,
			Number: number,
			Label:  label,
			Date:   date,
		})
	}
	return weeks
}

// FindWeek returns the first column whose parsed week number equals number.
func FindWeek(weeks []model.WeekColumn, number int) (model.WeekColumn, bool) {
	for _, w := range weeks {
		if w.Number != 0 && w.Number == number {
			return w, true
		}
	}
	return model.WeekColumn{}, false
}

// Labels returns the label of each week column.
func Labels(weeks []model.WeekColumn) []string {
	out := make([]string, len(weeks))
	for i, w := range weeks {
		out[i] = w.Label
	}
	return out
}
