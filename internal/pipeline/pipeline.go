// Package pipeline runs extractions: read a raw roster grid, find its header and week
// columns, reshape it into records, and merge the batch into a ledger.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/grid"
	"github.com/sells-group/participation-cli/internal/ledger"
	"github.com/sells-group/participation-cli/internal/metrics"
	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/roster"
)

// Options configures how raw rosters are read.
type Options struct {
	ScanDepth   int    // rows searched for the header; 0 means roster.DefaultScanDepth
	WeekMarker  string // "" means roster.DefaultWeekMarker
	Placeholder string // topic for unmapped weeks; "" means roster.DefaultPlaceholderTopic
	Topics      roster.Topics
	Classifier  *roster.Classifier // nil means roster.DefaultRules
	Metrics     *metrics.Metrics   // optional
}

// RunOptions are per-run switches.
type RunOptions struct {
	DryRun bool // compute the merged ledger but do not save it
	Backup bool // copy the raw grid to BackupPath(source) before processing
}

// WeekOptions select the single week an incremental update extracts.
type WeekOptions struct {
	RunOptions
	Week  int    // week number to extract
	Topic string // overrides the topic table when set
	Date  string // overrides the date parsed from the header when set
}

// Phase status values.
const (
	PhaseStatusComplete = "complete"
	PhaseStatusFailed   = "failed"
)

// PhaseResult times one step of a run.
type PhaseResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Result describes a finished run.
type Result struct {
	Run        model.Run                   `json:"run"`
	HeaderRow  int                         `json:"header_row"`
	Weeks      []model.WeekColumn          `json:"weeks"`
	Batch      []model.ParticipationRecord `json:"-"`
	Stats      ledger.MergeStats           `json:"stats"`
	Ledger     *ledger.Ledger              `json:"-"`
	BackupPath string                      `json:"backup_path,omitempty"`
	Phases     []PhaseResult               `json:"phases"`
}

// Extractor turns raw roster grids into ledger updates.
type Extractor struct {
	opts     Options
	merger   *ledger.Merger
	reshaper *roster.Reshaper
}

// New returns an Extractor that merges into merger.
func New(merger *ledger.Merger, opts Options) *Extractor {
	reshaper := roster.NewReshaper(opts.Classifier, opts.Topics, opts.Placeholder).
		OnUnrecognized(opts.Metrics.IncUnrecognized)
	return &Extractor{opts: opts, merger: merger, reshaper: reshaper}
}

// ExtractAll reads every week column of src and merges the whole batch.
func (e *Extractor) ExtractAll(ctx context.Context, src grid.Reader, opts RunOptions) (*Result, error) {
	return e.run(ctx, src, model.RunModeFull, opts, func(t *roster.Table) ([]model.WeekColumn, error) {
		weeks := roster.DetectWeekColumns(t.Headers, e.opts.WeekMarker)
		if len(weeks) == 0 {
			return nil, eris.Wrapf(roster.ErrNoWeekColumns, "pipeline: %s", src.Name())
		}
		return weeks, nil
	})
}

// ExtractWeek reads only the column for opts.Week and merges it under the canonical
// label "Week N (date)", or "Week N" when there is no date.
func (e *Extractor) ExtractWeek(ctx context.Context, src grid.Reader, opts WeekOptions) (*Result, error) {
	if opts.Week <= 0 {
		return nil, eris.Errorf("pipeline: week must be positive, got %d", opts.Week)
	}
	return e.run(ctx, src, model.RunModeWeek, opts.RunOptions, func(t *roster.Table) ([]model.WeekColumn, error) {
		weeks := roster.DetectWeekColumns(t.Headers, e.opts.WeekMarker)
		if len(weeks) == 0 {
			return nil, eris.Wrapf(roster.ErrNoWeekColumns, "pipeline: %s", src.Name())
		}
		col, ok := roster.FindWeek(weeks, opts.Week)
		if !ok {
			return nil, &roster.TargetWeekMissingError{Week: opts.Week, Found: roster.Labels(weeks)}
		}

		date := opts.Date
		if date == "" {
			date = col.Date
		}
		return []model.WeekColumn{{
			Index:  col.Index,
			Number: opts.Week,
			Label:  roster.WeekLabel(opts.Week, date),
			Date:   date,
			Topic:  opts.Topic,
		}}, nil
	})
}

// BackupPath is where a run with Backup copies the raw grid read from source.
func BackupPath(source string) string {
	return source + ".backup.xlsx"
}

type weekSelector func(t *roster.Table) ([]model.WeekColumn, error)

func (e *Extractor) run(ctx context.Context, src grid.Reader, mode model.RunMode, opts RunOptions, selectWeeks weekSelector) (res *Result, err error) {
	start := time.Now()
	res = &Result{
		Run: model.Run{
			ID:        uuid.NewString(),
			LedgerID:  e.merger.Store().Identity(),
			Source:    src.Name(),
			Mode:      mode,
			DryRun:    opts.DryRun,
			CreatedAt: start.UTC(),
		},
	}
	log := zap.L().With(
		zap.String("run_id", res.Run.ID),
		zap.String("source", src.Name()),
		zap.String("mode", string(mode)),
	)
	log.Info("pipeline: starting run")
	defer func() {
		e.opts.Metrics.ObserveRun(string(mode), start, err)
	}()

	var raw grid.Grid
	if err := res.track(log, "read", func() error {
		g, readErr := src.ReadGrid(ctx)
		if readErr != nil {
			if grid.IsNotExist(readErr) {
				return eris.Wrapf(roster.ErrSourceNotFound, "pipeline: %s", src.Name())
			}
			return eris.Wrapf(readErr, "pipeline: read %s", src.Name())
		}
		raw = g
		return nil
	}); err != nil {
		return nil, err
	}

	if opts.Backup {
		if err := res.track(log, "backup", func() error {
			res.BackupPath = BackupPath(src.Name())
			return eris.Wrap(grid.WriteFile(res.BackupPath, grid.DefaultSheetName, raw.Values()), "pipeline: backup")
		}); err != nil {
			return nil, err
		}
	}

	var table *roster.Table
	if err := res.track(log, "locate", func() error {
		res.HeaderRow = roster.LocateHeader(raw, e.opts.ScanDepth, e.opts.WeekMarker)
		table = roster.ParseTable(raw, res.HeaderRow)
		weeks, selErr := selectWeeks(table)
		if selErr != nil {
			return selErr
		}
		res.Weeks = weeks
		return nil
	}); err != nil {
		return nil, err
	}

	if err := res.track(log, "reshape", func() error {
		res.Batch = e.reshaper.Reshape(table, res.Weeks)
		res.Run.Weeks = roster.Labels(res.Weeks)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := res.track(log, "merge", func() error {
		merged, stats, mergeErr := e.merger.Apply(ctx, ledger.FromRecords(res.Batch), &res.Run, opts.DryRun)
		if mergeErr != nil {
			return mergeErr
		}
		res.Ledger = merged
		res.Stats = stats
		return nil
	}); err != nil {
		return nil, err
	}
	e.opts.Metrics.AddRecords(len(res.Batch), res.Stats.Replaced)

	log.Info("pipeline: run complete",
		zap.Int("header_row", res.HeaderRow),
		zap.Strings("weeks", res.Run.Weeks),
		zap.Int("records", len(res.Batch)),
		zap.Int("ledger_size", res.Stats.Result),
		zap.Bool("dry_run", opts.DryRun),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// track runs fn as a named phase and records its outcome.
func (r *Result) track(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	phase := PhaseResult{Name: name, Status: PhaseStatusComplete, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		phase.Status = PhaseStatusFailed
		phase.Error = err.Error()
		log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", phase.Duration), zap.Error(err))
	} else {
		log.Debug("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", phase.Duration))
	}
	r.Phases = append(r.Phases, phase)
	return err
}
