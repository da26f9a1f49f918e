package grid

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_CellAndWidth(t *testing.T) {
	g := Grid{{"a"}, {"b", "c", "d"}, nil}
	assert.Equal(t, 3, g.Width())
	assert.Equal(t, "c", g.Cell(1, 1))
	assert.Equal(t, "", g.Cell(0, 2))
	assert.Equal(t, "", g.Cell(2, 0))
	assert.Equal(t, "", g.Cell(-1, 0))
	assert.Equal(t, "", g.Cell(9, 0))
}

func TestFileSource_MissingFile(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "missing.xlsx")}
	_, err := src.ReadGrid(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestFileSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student,Week 1\nAna,#\n"), 0o644))

	g, err := FileSource{Path: path}.ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Grid{{"Student", "Week 1"}, {"Ana", "#"}}, g)
}

func TestWriteFile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.xlsx")

	require.NoError(t, WriteFile(path, "Ledger", [][]any{{"Student"}, {"Ana"}}))
	require.NoError(t, WriteFile(path, "Ledger", [][]any{{"Student"}, {"Ben"}}))

	g, err := FileSource{Path: path}.ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ben", g.Cell(1, 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, WriteFile(path, "", [][]any{{"Student", "Participation"}, {"Ana", 1}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Student,Participation\nAna,1\n", string(data))
}

func TestGridValues(t *testing.T) {
	g := Grid{{"Student", "Week 1"}, {"Ana", ""}}
	assert.Equal(t, [][]any{{"Student", "Week 1"}, {"Ana", nil}}, g.Values())
}
