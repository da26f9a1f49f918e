package ledger

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/grid"
	"github.com/sells-group/participation-cli/internal/model"
)

// DefaultSheet is the worksheet name used for XLSX ledgers.
const DefaultSheet = "Ledger"

// FileStore keeps a ledger in a single XLSX or CSV file.
type FileStore struct {
	path  string
	sheet string
}

// NewFileStore returns a store for path. The format follows the extension.
func NewFileStore(path, sheet string) *FileStore {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &FileStore{path: path, sheet: sheet}
}

// Path returns the ledger file path.
func (s *FileStore) Path() string { return s.path }

// Identity implements Store.
func (s *FileStore) Identity() string { return "file:" + s.path }

// Load reads the ledger file. The first sheet is used, so ledgers written by other
// tools with a different sheet name still load.
func (s *FileStore) Load(ctx context.Context) (*Ledger, error) {
	g, err := grid.FileSource{Path: s.path}.ReadGrid(ctx)
	if err != nil {
		if grid.IsNotExist(err) {
			return nil, eris.Wrapf(ErrLedgerNotFound, "ledger: %s", s.path)
		}
		return nil, eris.Wrapf(err, "ledger: load %s", s.path)
	}
	return FromTable(g), nil
}

// Save writes the whole ledger to a temp file and renames it over the old one.
func (s *FileStore) Save(_ context.Context, l *Ledger, run *model.Run) error {
	if err := grid.WriteFile(s.path, s.sheet, l.Table()); err != nil {
		return eris.Wrapf(err, "ledger: save %s", s.path)
	}
	if run != nil {
		zap.L().Info("ledger: saved",
			zap.String("path", s.path),
			zap.String("run_id", run.ID),
			zap.Int("rows", l.Len()),
		)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
