package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var billPeriod string

var billCmd = &cobra.Command{
	Use:   "bill <units>",
	Short: "Price a unit count against the tariff",
	Long:  `Prices a monthly (default) or bi-monthly unit count and prints the slab breakdown.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBill,
}

var slabsCmd = &cobra.Command{
	Use:   "slabs",
	Short: "Show the tariff slabs",
	RunE:  runSlabs,
}

func init() {
	billCmd.Flags().StringVar(&billPeriod, "period", "monthly", "monthly or bimonthly")
	rootCmd.AddCommand(billCmd, slabsCmd)
}

func runBill(cmd *cobra.Command, args []string) error {
	units, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("units %q is not a number", args[0])
	}

	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	bill, err := tracker.CalculateBill(context.Background(), userID, units, billPeriod)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printBreakdown(out, bill.Breakdown)
	fmt.Fprintf(out, "Total: %s for %s (avg %s/unit)\n", rupees(bill.TotalAmount), kwh(bill.TotalUnits), rupees(bill.AverageRate))
	if billPeriod != "bimonthly" {
		fmt.Fprintf(out, "Priced as %s on the bi-monthly bill\n", rupees(bill.BimonthlyAmount))
	}
	return nil
}

func runSlabs(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	slabs, err := tracker.Slabs(context.Background(), userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s  %6s  %s\n", "Units", "Rate", "")
	fmt.Fprintln(out, rule)
	for _, s := range slabs {
		fmt.Fprintf(out, "%-12s  %6.2f  %s\n", s.Range, s.Rate, s.Note)
	}
	return nil
}
