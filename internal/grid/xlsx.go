package grid

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// DefaultSheetName is used when writing a workbook without an explicit sheet name.
const DefaultSheetName = "Sheet1"

// ReadXLSX reads one sheet of an XLSX file into a Grid.
func ReadXLSX(path string, opts XLSXOptions) (Grid, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make(Grid, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// WriteXLSX writes rows as a single-sheet workbook. Supported cell values are string,
// int, int64, float64, bool and nil (left blank).
func WriteXLSX(w io.Writer, sheetName string, rows [][]any) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %q", sheetName)
	}

	for i, values := range rows {
		row := sheet.AddRow()
		for j, v := range values {
			if err := setCell(row.AddCell(), v); err != nil {
				return eris.Wrapf(err, "xlsx: row %d col %d", i, j)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func setCell(cell *xlsx.Cell, v any) error {
	switch val := v.(type) {
	case nil:
	case string:
		cell.SetString(val)
	case int:
		cell.SetInt(val)
	case int64:
		cell.SetInt64(val)
	case float64:
		cell.SetFloat(val)
	case bool:
		cell.SetBool(val)
	default:
		return eris.Errorf("unsupported cell type %T", v)
	}
	return nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
