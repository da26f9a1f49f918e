// Package ledger persists the normalized participation ledger and merges new batches
// into it with last-write-wins de-duplication on (student, week).
package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/roster"
)

var validate = validator.New()

// Row is one ledger line keyed by column name. A missing key is a null cell.
type Row map[string]string

// Key returns the (student, week) identity of the row with surrounding whitespace
// trimmed. Null key cells read as "".
func (r Row) Key() model.Key {
	return model.Key{
		Student: strings.TrimSpace(r[model.ColStudent]),
		Week:    strings.TrimSpace(r[model.ColWeek]),
	}
}

// normalizeKey rewrites the key cells of r in their trimmed form so the stored text
// matches Key.
func (r Row) normalizeKey() {
	k := r.Key()
	if _, ok := r[model.ColStudent]; ok {
		r[model.ColStudent] = k.Student
	}
	if _, ok := r[model.ColWeek]; ok {
		r[model.ColWeek] = k.Week
	}
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Ledger is an ordered table of rows. Columns holds every column seen, in order;
// rows need not carry a value for each one.
type Ledger struct {
	Columns []string
	Rows    []Row
}

// New returns an empty ledger with the core columns.
func New() *Ledger {
	return &Ledger{Columns: append([]string(nil), model.CoreColumns...)}
}

// FromRecords builds a ledger holding records in the given order.
func FromRecords(records []model.ParticipationRecord) *Ledger {
	l := New()
	l.Rows = make([]Row, len(records))
	for i, r := range records {
		row := Row(r.Row())
		row.normalizeKey()
		l.Rows[i] = row
	}
	return l
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Rows)
}

// ExtraColumns returns the non-core columns in ledger order.
func (l *Ledger) ExtraColumns() []string {
	var out []string
	for _, c := range l.Columns {
		if !model.IsCoreColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Records converts rows to typed records. A null or blank Participation reads as 0;
// anything else must be a non-negative integer, and every row must pass validation.
func (l *Ledger) Records() ([]model.ParticipationRecord, error) {
	if l == nil {
		return nil, nil
	}
	out := make([]model.ParticipationRecord, 0, len(l.Rows))
	for i, row := range l.Rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: row %d", i+1)
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromRow(row Row) (model.ParticipationRecord, error) {
	rec := model.ParticipationRecord{
		Student:    strings.TrimSpace(row[model.ColStudent]),
		Week:       strings.TrimSpace(row[model.ColWeek]),
		Date:       row[model.ColDate],
		Topic:      row[model.ColTopic],
		Attendance: model.Status(strings.TrimSpace(row[model.ColAttendance])),
	}
	if raw := strings.TrimSpace(row[model.ColParticipation]); raw != "" {
		n, err := parseCount(raw)
		if err != nil {
			return rec, eris.Wrapf(err, "participation %q", raw)
		}
		rec.Participation = n
	}
	if err := validate.Struct(rec); err != nil {
		return rec, eris.Wrap(err, "validate")
	}
	return rec, nil
}

// parseCount accepts integers and integral floats ("2.0"), which spreadsheet tools
// emit for numeric cells.
func parseCount(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, eris.Errorf("not an integer")
	}
	return int(f), nil
}

// Sort orders rows by student, then week number, then week label. Ties keep their
// relative order.
func (l *Ledger) Sort() {
	sort.SliceStable(l.Rows, func(i, j int) bool {
		return lessKey(l.Rows[i].Key(), l.Rows[j].Key())
	})
}

func lessKey(a, b model.Key) bool {
	if a.Student != b.Student {
		return a.Student < b.Student
	}
	na, _ := roster.ParseWeekNumber(a.Week)
	nb, _ := roster.ParseWeekNumber(b.Week)
	if na != nb {
		return na < nb
	}
	return a.Week < b.Week
}

// Table renders the ledger as a header row followed by data rows. Participation is
// written as an integer when it parses as one; null cells are nil.
func (l *Ledger) Table() [][]any {
	out := make([][]any, 0, len(l.Rows)+1)
	header := make([]any, len(l.Columns))
	for i, c := range l.Columns {
		header[i] = c
	}
	out = append(out, header)

	for _, row := range l.Rows {
		values := make([]any, len(l.Columns))
		for i, c := range l.Columns {
			v, ok := row[c]
			if !ok {
				continue
			}
			if c == model.ColParticipation {
				if n, err := parseCount(strings.TrimSpace(v)); err == nil {
					values[i] = n
					continue
				}
			}
			values[i] = v
		}
		out = append(out, values)
	}
	return out
}

// FromTable parses a header row plus data rows. Blank header cells are skipped and
// empty data cells become nulls.
func FromTable(rows [][]string) *Ledger {
	l := &Ledger{}
	if len(rows) == 0 {
		return New()
	}

	header := rows[0]
	seen := make(map[string]bool, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		names[i] = h
		l.Columns = append(l.Columns, h)
	}

	for _, raw := range rows[1:] {
		row := Row{}
		for i, v := range raw {
			if i >= len(names) || names[i] == "" || v == "" {
				continue
			}
			row[names[i]] = v
		}
		if len(row) == 0 {
			continue
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}
