package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show staged item counts and source sync state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Reporter.Report(ctx)
	if err != nil {
		return err
	}
	sources, err := a.Sources.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT\tAVG ATTEMPTS")
	for _, s := range report.Statuses {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", s.Status, s.Count, s.AvgAttempts)
	}
	fmt.Fprintf(w, "TOTAL\t%d\t\n", report.Total)
	fmt.Fprintf(w, "LAST ANALYZED\t%s\t\n", formatTime(report.LastAnalyzedAt))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SOURCE\tSTATE\tLAST SYNC\tITEMS\tLAST ERROR")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.Provider, s.State, formatTime(s.LastSyncAt), s.ItemsSeen, s.LastError)
	}
	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
