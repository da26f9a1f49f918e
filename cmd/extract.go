package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/pipeline"
)

var (
	extractRaw    string
	extractDryRun bool
	extractBackup bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract every week of a raw roster into the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		x, cleanup, err := initExtraction(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := x.ExtractAll(ctx, rosterSource(cfg.Roster, extractRaw), pipeline.RunOptions{
			DryRun: extractDryRun,
			Backup: extractBackup,
		})
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		zap.L().Info("extraction complete",
			zap.String("source", extractRaw),
			zap.Int("records", len(res.Batch)),
			zap.Int("ledger_size", res.Stats.Result),
		)
		return writeRunResult(cmd.OutOrStdout(), res, extractDryRun)
	},
}

// runOutput is the JSON printed after a run. Records are included only for dry runs,
// where the batch is not visible anywhere else.
type runOutput struct {
	*pipeline.Result
	Records []model.ParticipationRecord `json:"records,omitempty"`
}

// writeRunResult prints res as indented JSON.
func writeRunResult(out io.Writer, res *pipeline.Result, dryRun bool) error {
	o := runOutput{Result: res}
	if dryRun {
		o.Records = res.Batch
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

func init() {
	extractCmd.Flags().StringVar(&extractRaw, "raw", "", "path to the raw roster sheet (.xlsx or .csv, required)")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "compute the merge without saving it")
	extractCmd.Flags().BoolVar(&extractBackup, "backup", false, "copy the raw sheet to <raw>.backup.xlsx first")
	_ = extractCmd.MarkFlagRequired("raw")
	rootCmd.AddCommand(extractCmd)
}
