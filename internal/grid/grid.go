// Package grid reads and writes two-dimensional cell grids from XLSX and CSV files.
package grid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Grid is a rectangular-ish block of raw cell text. Rows may be ragged; a cell past
// the end of its row is treated as absent.
type Grid [][]string

// Cell returns the text at (row, col), or "" when the position is absent.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	if col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Values converts the grid for WriteFile. Empty cells become nil.
func (g Grid) Values() [][]any {
	out := make([][]any, len(g))
	for i, row := range g {
		out[i] = make([]any, len(row))
		for j, v := range row {
			if v != "" {
				out[i][j] = v
			}
		}
	}
	return out
}

// Reader supplies a grid from some source chosen by the caller.
type Reader interface {
	ReadGrid(ctx context.Context) (Grid, error)
	Name() string
}

// FileSource is a Reader over a single spreadsheet file. The format is chosen by
// extension: .csv is read as CSV, everything else as XLSX.
type FileSource struct {
	Path       string
	SheetIndex int
	SheetName  string
}

// Name returns the source path.
func (s FileSource) Name() string { return s.Path }

// ReadGrid reads the whole sheet.
func (s FileSource) ReadGrid(ctx context.Context) (Grid, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, eris.Wrapf(err, "grid: stat %s", s.Path)
	}
	if IsCSV(s.Path) {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "grid: open %s", s.Path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{})
	}
	return ReadXLSX(s.Path, XLSXOptions{SheetIndex: s.SheetIndex, SheetName: s.SheetName})
}

// IsNotExist reports whether err stems from a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// IsCSV reports whether path names a CSV file.
func IsCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// WriteFile writes rows to path, choosing the format by extension. The file is written
// to a temporary sibling first and renamed into place, so readers see either the old
// contents or the new ones.
func WriteFile(path, sheetName string, rows [][]any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "grid: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if IsCSV(path) {
		err = WriteCSV(tmp, rows)
	} else {
		err = WriteXLSX(tmp, sheetName, rows)
	}
	if err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "grid: close temp for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "grid: rename into %s", path)
	}
	return nil
}
