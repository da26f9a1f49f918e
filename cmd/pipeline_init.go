package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/config"
	"github.com/sells-group/participation-cli/internal/grid"
	"github.com/sells-group/participation-cli/internal/ledger"
	"github.com/sells-group/participation-cli/internal/metrics"
	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/pipeline"
	"github.com/sells-group/participation-cli/internal/roster"
)

// ledgerEnv holds the store and merger for one ledger. Callers should defer env.Close().
type ledgerEnv struct {
	Store  ledger.Store
	Merger *ledger.Merger
}

// Close releases the store.
func (le *ledgerEnv) Close() {
	if le.Store != nil {
		_ = le.Store.Close()
	}
}

// initLocker builds the writer lock selected by cfg. The returned close func releases
// any connection the locker holds.
func initLocker(ctx context.Context, lc config.LockConfig) (ledger.Locker, func() error, error) {
	switch lc.Driver {
	case "", "local":
		return ledger.NewLocalLocker(), func() error { return nil }, nil
	case "redis":
		l, err := ledger.NewRedisLocker(ctx, lc.RedisURL, time.Duration(lc.TTLSecs)*time.Second)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("redis ledger lock enabled", zap.Int("ttl_secs", lc.TTLSecs))
		return l, l.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported lock driver: %s", lc.Driver)
	}
}

// initLedger opens ledger id and wraps it in a Merger that serializes writers
// through locker. m may be nil.
func initLedger(ctx context.Context, lc config.LedgerConfig, id string, locker ledger.Locker, m *metrics.Metrics) (*ledgerEnv, error) {
	st, err := ledger.Open(ctx, lc, id)
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	merger := ledger.NewMerger(st, locker).OnLockWait(m.ObserveLockWait)
	return &ledgerEnv{Store: st, Merger: merger}, nil
}

// extractorOptions turns the roster config into pipeline options, loading the topic
// table from the topics file and inline entries.
func extractorOptions(rc config.RosterConfig, m *metrics.Metrics) (pipeline.Options, error) {
	topics, err := rc.LoadTopics()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		ScanDepth:   rc.HeaderScanDepth,
		WeekMarker:  rc.WeekMarker,
		Placeholder: rc.PlaceholderTopic,
		Topics:      roster.Topics(topics),
		Metrics:     m,
	}, nil
}

// rosterSource reads the raw roster at path with the configured sheet selection.
func rosterSource(rc config.RosterConfig, path string) grid.FileSource {
	return grid.FileSource{Path: path, SheetIndex: rc.SheetIndex, SheetName: rc.SheetName}
}

// initExtraction wires everything an extract or update run needs. The cleanup func
// writes the run metrics to the configured textfile before releasing the ledger.
func initExtraction(ctx context.Context) (*pipeline.Extractor, func(), error) {
	locker, closeLocker, err := initLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, nil, err
	}
	m := metrics.New()
	env, err := initLedger(ctx, cfg.Ledger, ledgerID, locker, m)
	if err != nil {
		_ = closeLocker()
		return nil, nil, err
	}
	opts, err := extractorOptions(cfg.Roster, m)
	if err != nil {
		env.Close()
		_ = closeLocker()
		return nil, nil, err
	}
	cleanup := func() {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("metrics textfile not written", zap.Error(err))
		}
		env.Close()
		_ = closeLocker()
	}
	return pipeline.New(env.Merger, opts), cleanup, nil
}

// loadRecords reads every record of the ledger behind merger. A ledger that does not
// exist yet yields no records.
func loadRecords(ctx context.Context, merger *ledger.Merger) ([]model.ParticipationRecord, error) {
	l, err := merger.Load(ctx)
	if err != nil {
		return nil, err
	}
	records, err := l.Records()
	if err != nil {
		return nil, eris.Wrap(err, "read ledger records")
	}
	return records, nil
}

// openLedgerRecords opens the configured ledger read-only and returns its records.
func openLedgerRecords(ctx context.Context) ([]model.ParticipationRecord, error) {
	env, err := initLedger(ctx, cfg.Ledger, ledgerID, nil, nil)
	if err != nil {
		return nil, err
	}
	defer env.Close()
	return loadRecords(ctx, env.Merger)
}
