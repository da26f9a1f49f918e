package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/pipeline"
)

var (
	updateRaw    string
	updateWeek   int
	updateTopic  string
	updateDate   string
	updateDryRun bool
	updateBackup bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Extract a single week of a raw roster into the ledger",
	Long:  "Finds the column for --week, labels it \"Week N (date)\", and merges only that week. Other weeks in the ledger are untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		x, cleanup, err := initExtraction(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := x.ExtractWeek(ctx, rosterSource(cfg.Roster, updateRaw), pipeline.WeekOptions{
			RunOptions: pipeline.RunOptions{DryRun: updateDryRun, Backup: updateBackup},
			Week:       updateWeek,
			Topic:      updateTopic,
			Date:       updateDate,
		})
		if err != nil {
			return eris.Wrapf(err, "update week %d", updateWeek)
		}

		zap.L().Info("week update complete",
			zap.String("source", updateRaw),
			zap.Int("week", updateWeek),
			zap.Strings("labels", res.Run.Weeks),
			zap.Int("records", len(res.Batch)),
		)
		return writeRunResult(cmd.OutOrStdout(), res, updateDryRun)
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateRaw, "raw", "", "path to the raw roster sheet (.xlsx or .csv, required)")
	updateCmd.Flags().IntVar(&updateWeek, "week", 0, "week number to extract (required)")
	updateCmd.Flags().StringVar(&updateTopic, "topic", "", "topic for the week (default from the topic table)")
	updateCmd.Flags().StringVar(&updateDate, "date", "", "date for the week label (default parsed from the header)")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "compute the merge without saving it")
	updateCmd.Flags().BoolVar(&updateBackup, "backup", false, "copy the raw sheet to <raw>.backup.xlsx first")
	_ = updateCmd.MarkFlagRequired("raw")
	_ = updateCmd.MarkFlagRequired("week")
	rootCmd.AddCommand(updateCmd)
}
