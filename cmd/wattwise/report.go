package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wattwise/internal/models"
)

var usageLimit int

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recent daily consumption",
	RunE:  runUsage,
}

var reportCmd = &cobra.Command{
	Use:   "report [YYYY-MM]",
	Short: "Summarize a month (default: this month)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-derive every day from the stored readings",
	Long: `Recomputes consumption, cost and anomaly flags for every day with readings,
oldest first. Use after importing readings or changing the tariff.`,
	RunE: runRebuild,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict this month's bill from recent usage",
	RunE:  runPredict,
}

func init() {
	usageCmd.Flags().IntVar(&usageLimit, "limit", 14, "number of days to show")
	rootCmd.AddCommand(usageCmd, rebuildCmd, reportCmd, predictCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	usages, err := tracker.DailyUsage(context.Background(), userID, usageLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(usages) == 0 {
		fmt.Fprintln(out, "No usage recorded yet")
		return nil
	}
	printUsage(out, usages)
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	n, err := tracker.RebuildUsage(context.Background(), userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Rebuilt %d days\n", n)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	month := models.Today().MonthKey()
	if len(args) == 1 {
		month = args[0]
	}

	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	rep, err := tracker.MonthlyReport(context.Background(), userID, month)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := rep.Stats
	fmt.Fprintf(out, "%s\n", rep.Month)
	fmt.Fprintln(out, rule)
	if s.DaysRecorded == 0 {
		fmt.Fprintln(out, "No complete days recorded")
		return nil
	}
	fmt.Fprintf(out, "Days recorded:  %d\n", s.DaysRecorded)
	fmt.Fprintf(out, "Total:          %s, %s\n", kwh(s.TotalKWh), rupees(s.TotalCost))
	fmt.Fprintf(out, "Daily average:  %s\n", kwh(s.AvgDailyKWh))
	fmt.Fprintf(out, "Range:          %s to %s\n", kwh(s.MinKWh), kwh(s.PeakKWh))
	fmt.Fprintf(out, "Unusual days:   %d\n", s.AnomalyDays)
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	p, err := tracker.PredictBill(context.Background(), userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if p.DaysUsed == 0 {
		fmt.Fprintln(out, "Not enough readings to predict a bill yet")
		return nil
	}
	fmt.Fprintf(out, "Based on %d days averaging %s (%s/day)\n", p.DaysUsed, kwh(p.AvgDailyKWh), rupees(p.AvgDailyCost))
	fmt.Fprintf(out, "Predicted month: %s, %s\n", kwh(p.PredictedMonthlyKWh), rupees(p.PredictedMonthlyCost))
	printBreakdown(out, p.SlabBreakdown)
	m := p.CurrentMonth
	fmt.Fprintf(out, "%s so far: %s, %s over %d of %d days\n", m.Month, kwh(m.KWhSoFar), rupees(m.CostSoFar), m.DaysRecorded, m.DaysElapsed)
	return nil
}
