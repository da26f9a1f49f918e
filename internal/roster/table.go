package roster

import (
	"strings"

	"github.com/sells-group/participation-cli/internal/model"
)

// Row is one student line of a wide roster table.
type Row struct {
	Student string   // trimmed; may be empty
	Cells   []string // raw cells, aligned with Table.Headers
}

// Cell returns the raw cell at col, or "" when the row is short.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// Table is a wide roster: one row per student, one column per week.
type Table struct {
	Headers []string
	Rows    []Row
}

// ParseTable takes the row at headerIdx as the header and every later row as data.
// Headers are whitespace-collapsed and the first column is always named Student.
func ParseTable(rows [][]string, headerIdx int) *Table {
	t := &Table{}
	if headerIdx < 0 || headerIdx >= len(rows) {
		return t
	}

	t.Headers = make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		t.Headers[i] = NormalizeHeader(h)
	}
	if len(t.Headers) == 0 {
		t.Headers = []string{model.ColStudent}
	}
	t.Headers[0] = model.ColStudent

	for _, raw := range rows[headerIdx+1:] {
		var student string
		if len(raw) > 0 {
			student = strings.TrimSpace(raw[0])
		}
		t.Rows = append(t.Rows, Row{Student: student, Cells: raw})
	}
	return t
}

// Students returns the non-blank student identities in row order.
func (t *Table) Students() []string {
	var out []string
	for _, r := range t.Rows {
		if r.Student != "" {
			out = append(out, r.Student)
		}
	}
	return out
}
