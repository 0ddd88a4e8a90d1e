package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wattwise/internal/models"
)

var (
	readingEdit bool
	readingFrom string
	readingTo   string
)

var readingCmd = &cobra.Command{
	Use:   "reading",
	Short: "Record and list meter readings",
}

var readingAddCmd = &cobra.Command{
	Use:   "add <date> <morning|night> <kwh>",
	Short: "Record a meter reading",
	Long: `Records the cumulative meter value for a day and time of day, then prints
the day's derived consumption. Use --edit to correct a reading already recorded.`,
	Args: cobra.ExactArgs(3),
	RunE: runReadingAdd,
}

var readingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded meter readings",
	RunE:  runReadingList,
}

func init() {
	readingAddCmd.Flags().BoolVar(&readingEdit, "edit", false, "overwrite an existing reading")
	readingListCmd.Flags().StringVar(&readingFrom, "from", "", "first date (YYYY-MM-DD)")
	readingListCmd.Flags().StringVar(&readingTo, "to", "", "last date (YYYY-MM-DD)")
	readingCmd.AddCommand(readingAddCmd, readingListCmd)
	rootCmd.AddCommand(readingCmd)
}

func parseReading(args []string) (models.MeterReading, error) {
	date, err := models.ParseDate(args[0])
	if err != nil {
		return models.MeterReading{}, err
	}
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return models.MeterReading{}, fmt.Errorf("reading %q is not a number", args[2])
	}
	r := models.MeterReading{Date: date, TimeOfDay: models.TimeOfDay(args[1]), ReadingKWh: value}
	return r, r.Validate()
}

func runReadingAdd(cmd *cobra.Command, args []string) error {
	r, err := parseReading(args)
	if err != nil {
		return err
	}

	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	var day models.DailyUsage
	if readingEdit {
		day, err = tracker.EditReading(ctx, userID, r)
	} else {
		day, err = tracker.SubmitReading(ctx, userID, r)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Recorded %s reading %.2f for %s\n", r.TimeOfDay, r.ReadingKWh, r.Date)
	if day.Complete() {
		fmt.Fprintf(out, "  %s used, costing %s\n", kwh(day.ConsumptionKWh), rupees(day.Cost))
		if day.IsAnomaly {
			fmt.Fprintln(out, "  ⚠ this is unusually high compared with recent days")
		}
	} else {
		fmt.Fprintln(out, "  waiting for the other reading of the day")
	}
	return nil
}

func runReadingList(cmd *cobra.Command, args []string) error {
	var from, to models.Date
	var err error
	if readingFrom != "" {
		if from, err = models.ParseDate(readingFrom); err != nil {
			return err
		}
	}
	if readingTo != "" {
		if to, err = models.ParseDate(readingTo); err != nil {
			return err
		}
	}

	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	readings, err := tracker.ListReadings(context.Background(), userID, from, to)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(readings) == 0 {
		fmt.Fprintln(out, "No readings found")
		return nil
	}
	fmt.Fprintf(out, "%-12s  %-8s  %12s\n", "Date", "Time", "Reading")
	fmt.Fprintln(out, rule)
	for _, r := range readings {
		fmt.Fprintf(out, "%-12s  %-8s  %12.2f\n", r.Date, r.TimeOfDay, r.ReadingKWh)
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "%d readings\n", len(readings))
	return nil
}
