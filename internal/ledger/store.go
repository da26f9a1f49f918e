package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/participation-cli/internal/config"
	"github.com/sells-group/participation-cli/internal/model"
)

// ErrLedgerNotFound is returned by Load when the ledger has never been written. The
// merge path treats it, and only it, as an empty ledger.
var ErrLedgerNotFound = errors.New("ledger: not found")

// DefaultID names the ledger used when the caller does not pick one.
const DefaultID = "default"

// Store loads and saves one ledger. Save replaces the persisted ledger as a unit:
// after an error the previous contents are still in place.
type Store interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger, run *model.Run) error
	// Identity names the persisted resource; writers lock on it.
	Identity() string
	Close() error
}

// RunLister is implemented by stores that keep an audit record of each run.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

var (
	idRe    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

// ValidID reports whether id can name a ledger.
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

// Open returns the store for ledger id using the configured driver. An empty id means
// DefaultID. SQL stores are migrated before they are returned.
func Open(ctx context.Context, cfg config.LedgerConfig, id string) (Store, error) {
	if id == "" {
		id = DefaultID
	}
	if !ValidID(id) {
		return nil, eris.Errorf("ledger: invalid ledger id %q", id)
	}

	switch cfg.Driver {
	case "", "xlsx", "csv":
		return NewFileStore(filePath(cfg, id), cfg.Sheet), nil

	case "sqlite":
		if !tableRe.MatchString(cfg.Table) || strings.Contains(cfg.Table, ".") {
			return nil, eris.Errorf("ledger: invalid sqlite table %q", cfg.Table)
		}
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = cfg.Path
		}
		st, err := NewSQLite(dsn, cfg.Table, id)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil

	case "postgres":
		if !tableRe.MatchString(cfg.Table) {
			return nil, eris.Errorf("ledger: invalid postgres table %q", cfg.Table)
		}
		st, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Table, id)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil

	default:
		return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}

// filePath keeps the configured path for the default ledger and places named ledgers
// next to it (or under cfg.Dir) with the same extension.
func filePath(cfg config.LedgerConfig, id string) string {
	path := cfg.Path
	ext := filepath.Ext(path)
	if cfg.Driver == "csv" && !strings.EqualFold(ext, ".csv") {
		path = strings.TrimSuffix(path, ext) + ".csv"
		ext = ".csv"
	}
	if ext == "" {
		ext = ".xlsx"
		path += ext
	}
	if id == DefaultID {
		return path
	}
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, id+ext)
}
