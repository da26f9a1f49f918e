package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/participation-cli/internal/model"
)

// SQLiteStore keeps ledgers in a SQLite table keyed by (ledger_id, student, week).
// Non-core columns live in a JSON object in the extra column.
type SQLiteStore struct {
	db       *sql.DB
	dsn      string
	table    string
	ledgerID string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table, ledgerID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, dsn: dsn, table: table, ledgerID: ledgerID}, nil
}

func (s *SQLiteStore) migration() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	ledger_id     TEXT NOT NULL,
	student       TEXT NOT NULL,
	week          TEXT NOT NULL,
	date          TEXT,
	topic         TEXT,
	participation INTEGER,
	attendance    TEXT,
	extra         TEXT,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (ledger_id, student, week)
);

CREATE TABLE IF NOT EXISTS ledger_runs (
	id          TEXT PRIMARY KEY,
	ledger_id   TEXT NOT NULL,
	source      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	weeks       TEXT NOT NULL,
	batch_size  INTEGER NOT NULL,
	ledger_size INTEGER NOT NULL,
	replaced    INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_runs_ledger_id ON ledger_runs(ledger_id);
`, s.table)
}

// Migrate creates the ledger and run tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.migration())
	return eris.Wrap(err, "sqlite: migrate")
}

// Identity implements Store.
func (s *SQLiteStore) Identity() string {
	return fmt.Sprintf("sqlite:%s:%s:%s", s.dsn, s.table, s.ledgerID)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every row of the ledger. A ledger with no rows has never been written
// and yields ErrLedgerNotFound.
func (s *SQLiteStore) Load(ctx context.Context) (*Ledger, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT student, week, date, topic, participation, attendance, extra FROM %s WHERE ledger_id = ?`, s.table),
		s.ledgerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load ledger")
	}
	defer rows.Close() //nolint:errcheck

	var scanned []scannedRow
	for rows.Next() {
		var r scannedRow
		var participation sql.NullInt64
		var extra sql.NullString
		if err := rows.Scan(&r.student, &r.week, &r.date, &r.topic, &participation, &r.attendance, &extra); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ledger row")
		}
		if participation.Valid {
			r.participation = sql.NullString{String: strconv.FormatInt(participation.Int64, 10), Valid: true}
		}
		if extra.Valid {
			r.extra = []byte(extra.String)
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load ledger iterate")
	}
	if len(scanned) == 0 {
		return nil, eris.Wrapf(ErrLedgerNotFound, "sqlite: ledger %s", s.ledgerID)
	}
	return buildLedger(scanned)
}

// Save replaces the ledger rows and records run in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, l *Ledger, run *model.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ledger_id = ?`, s.table), s.ledgerID); err != nil {
		return eris.Wrap(err, "sqlite: clear ledger")
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (ledger_id, student, week, date, topic, participation, attendance, extra, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table))
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i, row := range l.Rows {
		v, err := sqlValues(row, l.ExtraColumns())
		if err != nil {
			return eris.Wrapf(err, "sqlite: row %d", i+1)
		}
		var extra any
		if v.extra != nil {
			extra = string(v.extra)
		}
		if _, err := stmt.ExecContext(ctx, s.ledgerID, v.student, v.week, v.date, v.topic,
			v.participation, v.attendance, extra, now); err != nil {
			return eris.Wrapf(err, "sqlite: insert row %d", i+1)
		}
	}

	if run != nil {
		weeks, err := json.Marshal(run.Weeks)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run weeks")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_runs (id, ledger_id, source, mode, weeks, batch_size, ledger_size, replaced, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, s.ledgerID, run.Source, string(run.Mode), string(weeks),
			run.BatchSize, run.LedgerSize, run.Replaced, run.CreatedAt,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert run")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save")
}

// ListRuns returns the audit records for this ledger, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ledger_id, source, mode, weeks, batch_size, ledger_size, replaced, created_at
		 FROM ledger_runs WHERE ledger_id = ? ORDER BY created_at DESC LIMIT ?`,
		s.ledgerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var mode, weeks string
		if err := rows.Scan(&r.ID, &r.LedgerID, &r.Source, &mode, &weeks,
			&r.BatchSize, &r.LedgerSize, &r.Replaced, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Mode = model.RunMode(mode)
		if err := json.Unmarshal([]byte(weeks), &r.Weeks); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal weeks for run %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// scannedRow is a ledger row as read back from SQL, before nulls are resolved.
type scannedRow struct {
	student, week                          string
	date, topic, participation, attendance sql.NullString
	extra                                  []byte
}

// buildLedger turns SQL rows into a ledger: core columns first, then every extra
// key seen, sorted.
func buildLedger(scanned []scannedRow) (*Ledger, error) {
	l := New()
	extraCols := map[string]bool{}
	for i, r := range scanned {
		row := Row{model.ColStudent: r.student, model.ColWeek: r.week}
		for col, v := range map[string]sql.NullString{
			model.ColDate:          r.date,
			model.ColTopic:         r.topic,
			model.ColParticipation: r.participation,
			model.ColAttendance:    r.attendance,
		} {
			if v.Valid {
				row[col] = v.String
			}
		}
		if len(r.extra) > 0 {
			var extra map[string]string
			if err := json.Unmarshal(r.extra, &extra); err != nil {
				return nil, eris.Wrapf(err, "ledger: unmarshal extra for row %d", i+1)
			}
			for k, v := range extra {
				row[k] = v
				extraCols[k] = true
			}
		}
		l.Rows = append(l.Rows, row)
	}

	names := make([]string, 0, len(extraCols))
	for k := range extraCols {
		names = append(names, k)
	}
	sort.Strings(names)
	l.Columns = append(l.Columns, names...)
	l.Sort()
	return l, nil
}

// rowValues holds the typed column values written for one row.
type rowValues struct {
	student, week string
	date, topic   any
	participation any
	attendance    any
	extra         []byte
}

// sqlValues converts a row for insertion. Nulls stay nil; Participation must parse.
func sqlValues(row Row, extraCols []string) (rowValues, error) {
	v := rowValues{student: row[model.ColStudent], week: row[model.ColWeek]}
	if d, ok := row[model.ColDate]; ok {
		v.date = d
	}
	if t, ok := row[model.ColTopic]; ok {
		v.topic = t
	}
	if a, ok := row[model.ColAttendance]; ok {
		v.attendance = a
	}
	if p, ok := row[model.ColParticipation]; ok {
		n, err := parseCount(strings.TrimSpace(p))
		if err != nil {
			return v, eris.Wrapf(err, "participation %q", p)
		}
		v.participation = int64(n)
	}

	extra := map[string]string{}
	for _, c := range extraCols {
		if val, ok := row[c]; ok {
			extra[c] = val
		}
	}
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			return v, eris.Wrap(err, "marshal extra")
		}
		v.extra = b
	}
	return v, nil
}
