package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wattwise/internal/cycle"
	"wattwise/internal/models"
)

var billAmount float64

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Manage the billing cycle",
}

var cycleImportCmd = &cobra.Command{
	Use:   "import <bill-date> <meter-reading>",
	Short: "Start a billing cycle from a bill",
	Long:  `Starts a new billing cycle anchored at the meter reading printed on a bill.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runCycleImport,
}

var cycleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current billing cycle",
	RunE:  runCycleShow,
}

func init() {
	cycleImportCmd.Flags().Float64Var(&billAmount, "amount", -1, "amount charged on the bill")
	cycleCmd.AddCommand(cycleImportCmd, cycleShowCmd)
	rootCmd.AddCommand(cycleCmd)
}

func runCycleImport(cmd *cobra.Command, args []string) error {
	date, err := models.ParseDate(args[0])
	if err != nil {
		return err
	}
	reading, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("meter reading %q is not a number", args[1])
	}
	var amount *float64
	if cmd.Flags().Changed("amount") {
		amount = &billAmount
	}

	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	c, err := tracker.ImportBill(context.Background(), userID, date, reading, amount)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Billing cycle started")
	printCycle(out, &c)
	return nil
}

func runCycleShow(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	c, state, err := tracker.BillingCycle(context.Background(), userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch state {
	case cycle.StateNoCycle:
		fmt.Fprintln(out, "No bill imported yet. Run: wattwise cycle import <bill-date> <meter-reading>")
		return nil
	case cycle.StateEnded:
		fmt.Fprintln(out, "⚠ This cycle has ended. Import your new bill to start the next one.")
	}
	printCycle(out, c)
	return nil
}
