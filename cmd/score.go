package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/scorer"
)

// Output formats for score and report.
const (
	formatTable = "table"
	formatJSON  = "json"
)

var (
	scoreWeeks  int
	scoreFormat string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print the participation score of every student",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(scoreFormat); err != nil {
			return err
		}
		ctx := cmd.Context()

		records, err := openLedgerRecords(ctx)
		if err != nil {
			return err
		}

		weeksTotal := resolveWeeks(scoreWeeks, cfg.Score.WeeksTotal, records)
		scores, err := scorer.ScoreAll(ctx, records, weeksTotal)
		if err != nil {
			return eris.Wrap(err, "score")
		}

		out := cmd.OutOrStdout()
		if scoreFormat == formatJSON {
			return writeJSON(out, map[string]any{
				"weeks_total": weeksTotal,
				"scores":      scores,
			})
		}
		formatScores(out, scores, weeksTotal)
		return nil
	},
}

// resolveWeeks picks the score denominator: the flag, then config, then the number of
// distinct weeks in records.
func resolveWeeks(flag, configured int, records []model.ParticipationRecord) int {
	if flag > 0 {
		return flag
	}
	if configured > 0 {
		return configured
	}
	return scorer.WeeksTotal(records)
}

func checkFormat(f string) error {
	switch f {
	case formatTable, formatJSON:
		return nil
	}
	return eris.Errorf("unsupported format %q (want table or json)", f)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatScores writes a ranked score table to out.
func formatScores(out io.Writer, scores []model.ScoreResult, weeksTotal int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSTUDENT\tSCORE")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----")
	for i, s := range scores {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\n", i+1, s.Student, s.Score)
	}
	_, _ = fmt.Fprintf(w, "\nWeeks total:\t%d\n", weeksTotal)
	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().IntVar(&scoreWeeks, "weeks", 0, "weeks in the term (default from config, else distinct weeks in the ledger)")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", formatTable, "output format: table or json")
	rootCmd.AddCommand(scoreCmd)
}
