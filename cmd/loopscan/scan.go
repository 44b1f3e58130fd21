package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

var scanFlags struct {
	json     bool
	top      int
	loopType string
	noStore  bool
	notify   bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the ranked loops",
	RunE: func(cmd *cobra.Command, args []string) error {
		loopType, err := domain.ParseTopology(scanFlags.loopType)
		if err != nil {
			return err
		}

		a, err := buildApp(cfg, appOptions{persist: !scanFlags.noStore, notify: scanFlags.notify})
		if err != nil {
			return err
		}
		defer a.Close()

		if loopType == domain.TopologyMultiLeg {
			loops, err := a.service.MultiLegLoops()
			if err != nil {
				return err
			}
			return printLoops(cmd.OutOrStdout(), loops)
		}

		ctx, cancel := scanContext(cmd.Context(), cfg.Scan.Timeout)
		defer cancel()

		report, err := a.service.Scan(ctx)
		if report == nil {
			return err
		}
		if err != nil {
			a.logger.Error("Scan not stored", zap.Error(err))
		}

		loops := report.Loops
		if loopType != "" {
			loops = report.Filter(loopType)
		}
		if scanFlags.top > 0 && len(loops) > scanFlags.top {
			loops = loops[:scanFlags.top]
		}

		out := cmd.OutOrStdout()
		if scanFlags.json {
			view := *report
			view.Loops = loops
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		return printLoops(out, loops)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanFlags.json, "json", false, "print the report as JSON")
	scanCmd.Flags().IntVar(&scanFlags.top, "top", 20, "show at most N loops (0 for all)")
	scanCmd.Flags().StringVar(&scanFlags.loopType, "type", "", "only show loops of this type (single, cross-platform or cross, multi-leg)")
	scanCmd.Flags().BoolVar(&scanFlags.noStore, "no-store", false, "do not save the scan to the database")
	scanCmd.Flags().BoolVar(&scanFlags.notify, "notify", false, "send the result to telegram")
}

func printLoops(w io.Writer, loops []domain.LoopRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tLOOP\tSUPPLY\tBORROW\tLTV\tLEV\tNET")
	for i, l := range loops {
		name := fmt.Sprintf("%s/%s %s:%s", l.Collateral, l.Borrow, l.Platform, l.Market)
		lev := ""
		switch {
		case l.SingleReturns != nil:
			lev = l.BestLev
		case l.CrossReturns != nil:
			name = l.Path
			lev = decimal.NewFromFloat(l.EffectiveLeverage).StringFixed(2) + "x"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, l.Type, name, pct(l.TotalSupply), pct(l.BorrowAPY), pct(l.LTV), lev, pct(l.BestNet))
	}
	return tw.Flush()
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}
