package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

const rule = "----------------------------------------"

func rupees(v float64) string {
	return "₹" + humanize.CommafWithDigits(billing.Round2(v), 2)
}

func kwh(v float64) string {
	return humanize.CommafWithDigits(billing.Round2(v), 2) + " kWh"
}

func printBreakdown(w io.Writer, breakdown []models.SlabCharge) {
	fmt.Fprintf(w, "%-12s  %10s  %6s  %12s\n", "Slab", "Units", "Rate", "Amount")
	fmt.Fprintln(w, rule)
	for _, c := range breakdown {
		fmt.Fprintf(w, "%-12s  %10.2f  %6.2f  %12s\n", c.Slab, c.Units, c.Rate, rupees(c.Amount))
	}
	fmt.Fprintln(w, rule)
}

func printUsage(w io.Writer, usages []models.DailyUsage) {
	fmt.Fprintf(w, "%-12s  %10s  %10s  %s\n", "Date", "kWh", "Cost", "Note")
	fmt.Fprintln(w, rule)
	for _, u := range usages {
		var notes []string
		if !u.Complete() {
			notes = append(notes, "incomplete")
		}
		if u.IsAnomaly {
			notes = append(notes, "unusual")
		}
		fmt.Fprintf(w, "%-12s  %10.2f  %10s  %s\n", u.Date, u.ConsumptionKWh, rupees(u.Cost), strings.Join(notes, ", "))
	}
	fmt.Fprintln(w, rule)
}

func printCycle(w io.Writer, c *models.BillingCycle) {
	fmt.Fprintf(w, "Last bill:        %s at %.2f kWh\n", c.LastBillDate, c.LastBillReading)
	if c.LastBillAmount != nil {
		fmt.Fprintf(w, "Last bill amount: %s\n", rupees(*c.LastBillAmount))
	}
	fmt.Fprintf(w, "Current reading:  %.2f kWh on %s\n", c.CurrentReading, c.CurrentReadingDate)
	fmt.Fprintf(w, "Consumed:         %s over %d of %d days\n", kwh(c.CycleConsumption), c.DaysInCycle, c.BillingPeriodDays)
	fmt.Fprintf(w, "Current slab:     %s at %s/unit", c.CurrentSlab, rupees(c.CurrentRate))
	if c.UnitsToNextSlab > 0 {
		fmt.Fprintf(w, " (%s to next slab)", kwh(c.UnitsToNextSlab))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cost so far:      %s\n", rupees(c.CostSoFar))
	fmt.Fprintf(w, "Projected:        %s, %s by %s\n", kwh(c.ProjectedConsumption), rupees(c.ProjectedAmount), c.EstimatedCycleEnd)
}
