package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/participation-cli/internal/ledger"
	"github.com/sells-group/participation-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the extraction runs recorded for a ledger",
	Long:  "Only the sqlite and postgres ledger drivers keep a run history.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := ledger.Open(ctx, cfg.Ledger, ledgerID)
		if err != nil {
			return eris.Wrap(err, "open ledger")
		}
		defer st.Close() //nolint:errcheck

		lister, ok := st.(ledger.RunLister)
		if !ok {
			return eris.Errorf("ledger driver %q does not record runs", cfg.Ledger.Driver)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := lister.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tSOURCE\tWEEKS\tBATCH\tLEDGER\tREPLACED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-----\t------\t--------\t-------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = "..." + source[len(source)-27:]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Mode,
			source,
			summarizeWeeks(r.Weeks),
			r.BatchSize,
			r.LedgerSize,
			r.Replaced,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// summarizeWeeks shows a single week label as is and longer lists by count.
func summarizeWeeks(weeks []string) string {
	switch len(weeks) {
	case 0:
		return "-"
	case 1:
		return weeks[0]
	case 2:
		return strings.Join(weeks, ", ")
	}
	return fmt.Sprintf("%d weeks", len(weeks))
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
