package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/participation-cli/internal/db"
	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/resilience"
)

// PostgresStore keeps ledgers in a PostgreSQL table keyed by (ledger_id, student, week).
type PostgresStore struct {
	pool     db.Pool
	table    string
	ledgerID string
}

// ledgerColumns is the column order used for COPY and upsert.
var ledgerColumns = []string{
	"ledger_id", "student", "week", "date", "topic", "participation", "attendance", "extra", "updated_at",
}

// NewPostgres connects a pool and returns a store for ledgerID in table.
func NewPostgres(ctx context.Context, connString, table, ledgerID string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	policy := resilience.DefaultPolicy()
	policy.OnRetry = resilience.LogRetry("postgres", "connect")
	pool, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: connect")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "postgres: ping")
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, table: table, ledgerID: ledgerID}, nil
}

// Migrate creates the ledger and run tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	ledger_id     TEXT NOT NULL,
	student       TEXT NOT NULL,
	week          TEXT NOT NULL,
	date          TEXT,
	topic         TEXT,
	participation INTEGER,
	attendance    TEXT,
	extra         JSONB,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ledger_id, student, week)
);

CREATE TABLE IF NOT EXISTS ledger_runs (
	id          UUID PRIMARY KEY,
	ledger_id   TEXT NOT NULL,
	source      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	weeks       JSONB NOT NULL,
	batch_size  INTEGER NOT NULL,
	ledger_size INTEGER NOT NULL,
	replaced    INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_runs_ledger_id ON ledger_runs(ledger_id);
`, db.SanitizeTable(s.table)))
	return eris.Wrap(err, "postgres: migrate")
}

// Identity implements Store.
func (s *PostgresStore) Identity() string {
	return fmt.Sprintf("postgres:%s:%s", s.table, s.ledgerID)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Load reads every row of the ledger. A ledger with no rows yields ErrLedgerNotFound.
func (s *PostgresStore) Load(ctx context.Context) (*Ledger, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT student, week, date, topic, participation, attendance, extra FROM %s WHERE ledger_id = $1`,
		db.SanitizeTable(s.table)),
		s.ledgerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load ledger")
	}
	defer rows.Close()

	var scanned []scannedRow
	for rows.Next() {
		var r scannedRow
		var date, topic, attendance pgtype.Text
		var participation pgtype.Int8
		if err := rows.Scan(&r.student, &r.week, &date, &topic, &participation, &attendance, &r.extra); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ledger row")
		}
		r.date = nullString(date)
		r.topic = nullString(topic)
		r.attendance = nullString(attendance)
		if participation.Valid {
			r.participation.String = strconv.FormatInt(participation.Int64, 10)
			r.participation.Valid = true
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load ledger iterate")
	}
	if len(scanned) == 0 {
		return nil, eris.Wrapf(ErrLedgerNotFound, "postgres: ledger %s", s.ledgerID)
	}
	return buildLedger(scanned)
}

// Save upserts every ledger row and records run in one transaction. Merges never drop
// keys, so upserting the merged ledger leaves exactly its rows in the table.
func (s *PostgresStore) Save(ctx context.Context, l *Ledger, run *model.Run) error {
	now := time.Now().UTC()
	extraCols := l.ExtraColumns()
	rows := make([][]any, 0, len(l.Rows))
	for i, row := range l.Rows {
		v, err := sqlValues(row, extraCols)
		if err != nil {
			return eris.Wrapf(err, "postgres: row %d", i+1)
		}
		var extra any
		if v.extra != nil {
			extra = v.extra
		}
		rows = append(rows, []any{s.ledgerID, v.student, v.week, v.date, v.topic, v.participation, v.attendance, extra, now})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        s.table,
		Columns:      ledgerColumns,
		ConflictKeys: []string{"ledger_id", "student", "week"},
	}, rows); err != nil {
		return eris.Wrap(err, "postgres: upsert ledger")
	}

	if run != nil {
		weeks, err := json.Marshal(run.Weeks)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run weeks")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_runs (id, ledger_id, source, mode, weeks, batch_size, ledger_size, replaced, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, s.ledgerID, run.Source, string(run.Mode), weeks,
			run.BatchSize, run.LedgerSize, run.Replaced, run.CreatedAt,
		); err != nil {
			return eris.Wrap(err, "postgres: insert run")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save")
}

// ListRuns returns the audit records for this ledger, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, ledger_id, source, mode, weeks, batch_size, ledger_size, replaced, created_at
		 FROM ledger_runs WHERE ledger_id = $1 ORDER BY created_at DESC LIMIT $2`,
		s.ledgerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var mode string
		var weeks []byte
		if err := rows.Scan(&r.ID, &r.LedgerID, &r.Source, &mode, &weeks,
			&r.BatchSize, &r.LedgerSize, &r.Replaced, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Mode = model.RunMode(mode)
		if err := json.Unmarshal(weeks, &r.Weeks); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal weeks for run %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func nullString(t pgtype.Text) sql.NullString {
	return sql.NullString{String: t.String, Valid: t.Valid}
}
