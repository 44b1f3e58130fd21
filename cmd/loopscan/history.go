package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitos/loop_scanner/internal/domain"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, appOptions{persist: true})
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.service.History(cmd.Context(), historyFlags.limit)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), reports)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 10, "number of scans to list")
}

func printHistory(w io.Writer, reports []*domain.ScanReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tRATES\tLOOPS\tBEST")
	for _, r := range reports {
		best := "-"
		if len(r.Loops) > 0 {
			best = pct(r.Loops[0].BestNet)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.RateCount, len(r.Loops), best)
	}
	return tw.Flush()
}
