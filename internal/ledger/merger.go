package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/model"
)

// Merger applies batches to one persisted ledger: lock, load, merge, save.
type Merger struct {
	store  Store
	locker Locker
	log    *zap.Logger

	onLockWait func(time.Duration)
}

// NewMerger returns a Merger over store. A nil locker means a fresh LocalLocker.
func NewMerger(store Store, locker Locker) *Merger {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Merger{store: store, locker: locker, log: zap.L().Named("ledger")}
}

// OnLockWait registers fn to receive how long each Apply waited for the lock.
func (m *Merger) OnLockWait(fn func(time.Duration)) *Merger {
	m.onLockWait = fn
	return m
}

// Store returns the underlying store.
func (m *Merger) Store() Store { return m.store }

// Load reads the persisted ledger. A ledger that was never written loads as empty;
// any other read error is returned.
func (m *Merger) Load(ctx context.Context) (*Ledger, error) {
	existing, err := m.store.Load(ctx)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, ErrLedgerNotFound) {
		m.log.Info("ledger: no existing ledger, starting empty",
			zap.String("store", m.store.Identity()),
			zap.String("reason", err.Error()),
		)
		return New(), nil
	}
	return nil, eris.Wrap(err, "ledger: load existing")
}

// Apply merges batch into the persisted ledger under the store's lock. With dryRun the
// merged ledger is computed and returned but nothing is written. run, when non-nil, is
// filled with the merge counts and recorded by stores that keep an audit table.
func (m *Merger) Apply(ctx context.Context, batch *Ledger, run *model.Run, dryRun bool) (*Ledger, MergeStats, error) {
	waitStart := time.Now()
	unlock, err := m.locker.Lock(ctx, m.store.Identity())
	if err != nil {
		return nil, MergeStats{}, err
	}
	defer unlock()
	if m.onLockWait != nil {
		m.onLockWait(time.Since(waitStart))
	}

	existing, err := m.Load(ctx)
	if err != nil {
		return nil, MergeStats{}, err
	}

	merged, stats := Merge(existing, batch)
	if run != nil {
		run.BatchSize = stats.Batch
		run.LedgerSize = stats.Result
		run.Replaced = stats.Replaced
		run.DryRun = dryRun
		if run.CreatedAt.IsZero() {
			run.CreatedAt = time.Now().UTC()
		}
	}

	fields := []zap.Field{
		zap.String("store", m.store.Identity()),
		zap.Int("existing", stats.Existing),
		zap.Int("batch", stats.Batch),
		zap.Int("added", stats.Added),
		zap.Int("replaced", stats.Replaced),
		zap.Int("result", stats.Result),
	}
	if dryRun {
		m.log.Info("ledger: dry run, not saving", fields...)
		return merged, stats, nil
	}

	if err := m.store.Save(ctx, merged, run); err != nil {
		return nil, stats, eris.Wrap(err, "ledger: save merged")
	}
	m.log.Info("ledger: merged", fields...)
	return merged, stats, nil
}
