package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/participation-cli/internal/report"
)

var (
	reportStudent    string
	reportWeek       string
	reportIncludeAll bool
	reportWeeks      int
	reportFormat     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the ledger for the class, one student, or one week",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportStudent != "" && reportWeek != "" {
			return eris.New("--student and --week are mutually exclusive")
		}
		if err := checkFormat(reportFormat); err != nil {
			return err
		}
		ctx := cmd.Context()

		records, err := openLedgerRecords(ctx)
		if err != nil {
			return err
		}
		weeksTotal := resolveWeeks(reportWeeks, cfg.Score.WeeksTotal, records)
		out := cmd.OutOrStdout()

		switch {
		case reportStudent != "":
			s, err := report.Student(records, reportStudent, weeksTotal)
			if err != nil {
				return err
			}
			if reportFormat == formatJSON {
				return writeJSON(out, s)
			}
			formatStudent(out, s)

		case reportWeek != "":
			w, err := report.Week(records, reportWeek, reportIncludeAll)
			if err != nil {
				return err
			}
			if reportFormat == formatJSON {
				return writeJSON(out, w)
			}
			formatWeek(out, w)

		default:
			o, err := report.BuildOverview(ctx, records, weeksTotal)
			if err != nil {
				return err
			}
			if reportFormat == formatJSON {
				return writeJSON(out, o)
			}
			formatOverview(out, o)
		}
		return nil
	},
}

func formatCounts(w io.Writer, c report.Counts) {
	_, _ = fmt.Fprintf(w, "Present:\t%d\n", c.Present)
	_, _ = fmt.Fprintf(w, "Absent:\t%d\n", c.Absent)
	_, _ = fmt.Fprintf(w, "Excused:\t%d\n", c.Excused)
}

// formatOverview writes the class-wide report to out.
func formatOverview(out io.Writer, o *report.Overview) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Students:\t%d\n", o.Students)
	_, _ = fmt.Fprintf(w, "Weeks total:\t%d\n", o.WeeksTotal)
	formatCounts(w, o.Attendance)

	_, _ = fmt.Fprintln(w, "\nSTUDENT\tTOTAL\tSCORE")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----")
	scores := make(map[string]float64, len(o.Scores))
	for _, s := range o.Scores {
		scores[s.Student] = s.Score
	}
	for _, t := range o.Totals {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\n", t.Student, t.Total, scores[t.Student])
	}

	_, _ = fmt.Fprintln(w, "\nWEEK\tAVERAGE\tSTUDENTS")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------")
	for _, a := range o.WeekAverages {
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%d\n", a.Week, a.Average, a.Students)
	}
	_ = w.Flush()
}

// formatStudent writes one student's summary and weekly rows to out.
func formatStudent(out io.Writer, s *report.StudentSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Student:\t%s\n", s.Student)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Weekly average:\t%.1f\n", s.WeeklyAverage)
	_, _ = fmt.Fprintf(w, "Weeks spoke:\t%d of %d\n", s.WeeksSpoke, s.WeeksTotal)
	_, _ = fmt.Fprintf(w, "Score:\t%.1f\n", s.Score)
	formatCounts(w, s.Attendance)

	_, _ = fmt.Fprintln(w, "\nWEEK\tTOPIC\tPARTICIPATION\tATTENDANCE")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------------\t----------")
	for _, r := range s.Weeks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Week, r.Topic, r.Participation, r.Attendance)
	}
	_ = w.Flush()
}

// formatWeek writes one week's participants to out.
func formatWeek(out io.Writer, ws *report.WeekSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Week:\t%s\n", ws.Week)
	_, _ = fmt.Fprintf(w, "Topic:\t%s\n", ws.Topic)
	formatCounts(w, ws.Attendance)

	_, _ = fmt.Fprintln(w, "\nSTUDENT\tPARTICIPATION")
	_, _ = fmt.Fprintln(w, "-------\t-------------")
	for _, p := range ws.Participants {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", p.Student, p.Total)
	}
	_ = w.Flush()
}

func init() {
	reportCmd.Flags().StringVar(&reportStudent, "student", "", "report on one student (exact name)")
	reportCmd.Flags().StringVar(&reportWeek, "week", "", "report on one week, by label or number")
	reportCmd.Flags().BoolVar(&reportIncludeAll, "include-all", false, "with --week, list students without a record as 0")
	reportCmd.Flags().IntVar(&reportWeeks, "weeks", 0, "weeks in the term (default from config, else distinct weeks in the ledger)")
	reportCmd.Flags().StringVar(&reportFormat, "format", formatTable, "output format: table or json")
	rootCmd.AddCommand(reportCmd)
}
