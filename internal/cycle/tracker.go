package cycle

import (
	"fmt"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

// DefaultCycleDays is the TNEB bi-monthly billing period.
const DefaultCycleDays = 60

// State is where a user's billing cycle is in its lifecycle.
type State string

const (
	StateNoCycle State = "no_cycle"
	StateActive  State = "active"
	StateEnded   State = "ended"
)

// Tracker anchors billing cycles on imported bills and follows consumption
// within them. It holds no per-user state.
type Tracker struct {
	table     *billing.Table
	cycleDays int
}

func NewTracker(table *billing.Table, cycleDays int) *Tracker {
	if table == nil {
		table = billing.TamilNaduDomestic()
	}
	if cycleDays <= 0 {
		cycleDays = DefaultCycleDays
	}
	return &Tracker{table: table, cycleDays: cycleDays}
}

func (t *Tracker) CycleDays() int {
	return t.cycleDays
}

// EstimateCycleEnd returns the day a cycle starting on lastBillDate is due to end.
func EstimateCycleEnd(lastBillDate models.Date, cycleDays int) models.Date {
	return lastBillDate.AddDays(cycleDays)
}

// ImportBill starts a new cycle anchored at the bill's date and meter reading.
func (t *Tracker) ImportBill(date models.Date, reading float64, amount *float64) (models.BillingCycle, error) {
	if date.IsZero() {
		return models.BillingCycle{}, &models.ValidationError{Field: "bill_date", Message: "is required"}
	}
	if reading < 0 {
		return models.BillingCycle{}, &models.ValidationError{Field: "bill_reading", Message: "must not be negative"}
	}
	if amount != nil && *amount < 0 {
		return models.BillingCycle{}, &models.ValidationError{Field: "bill_amount", Message: "must not be negative"}
	}

	c := models.BillingCycle{
		LastBillDate:       date,
		LastBillReading:    reading,
		CurrentReading:     reading,
		CurrentReadingDate: date,
		EstimatedCycleEnd:  EstimateCycleEnd(date, t.cycleDays),
		BillingPeriodDays:  t.cycleDays,
	}
	if amount != nil {
		a := *amount
		c.LastBillAmount = &a
	}
	return t.derive(c), nil
}

// Refresh moves the cycle's current reading to latestReading taken on
// latestDate. Readings dated before the bill or before the current reading
// leave the cycle unchanged.
func (t *Tracker) Refresh(c models.BillingCycle, latestReading float64, latestDate models.Date) models.BillingCycle {
	if latestDate.Before(c.LastBillDate) || latestDate.Before(c.CurrentReadingDate) {
		return t.derive(c)
	}
	c.CurrentReading = latestReading
	c.CurrentReadingDate = latestDate
	return t.derive(c)
}

// RefreshFromReadings sets the current reading to the highest reading taken
// on or after the bill date.
func (t *Tracker) RefreshFromReadings(c models.BillingCycle, readings []models.MeterReading) models.BillingCycle {
	for _, r := range readings {
		if r.Date.Before(c.LastBillDate) {
			continue
		}
		if r.ReadingKWh > c.CurrentReading || (r.ReadingKWh == c.CurrentReading && r.Date.After(c.CurrentReadingDate)) {
			c.CurrentReading = r.ReadingKWh
			c.CurrentReadingDate = r.Date
		}
	}
	return t.derive(c)
}

// AsOf counts the cycle's days up to asOf when that is later than the current
// reading, so a cycle with no new readings still ages and ends. Consumption and
// the projection keep following the readings.
func (t *Tracker) AsOf(c models.BillingCycle, asOf models.Date) models.BillingCycle {
	c = t.derive(c)
	if !asOf.After(c.CurrentReadingDate) {
		return c
	}
	c.DaysInCycle = asOf.DaysSince(c.LastBillDate)
	if c.DaysInCycle > c.BillingPeriodDays {
		c.Status = models.CycleEnded
	}
	return c
}

// State reports the lifecycle state of c, which is nil when no bill was imported.
func (t *Tracker) State(c *models.BillingCycle) State {
	if c == nil {
		return StateNoCycle
	}
	period := c.BillingPeriodDays
	if period <= 0 {
		period = t.cycleDays
	}
	if c.DaysInCycle > period {
		return StateEnded
	}
	return StateActive
}

// derive recomputes every field that follows from the anchor and current reading.
func (t *Tracker) derive(c models.BillingCycle) models.BillingCycle {
	if c.BillingPeriodDays <= 0 {
		c.BillingPeriodDays = t.cycleDays
	}
	c.EstimatedCycleEnd = EstimateCycleEnd(c.LastBillDate, c.BillingPeriodDays)

	consumption := c.CurrentReading - c.LastBillReading
	if consumption < 0 {
		consumption = 0
	}
	c.CycleConsumption = billing.Round2(consumption)

	c.DaysInCycle = 0
	if c.CurrentReadingDate.After(c.LastBillDate) {
		c.DaysInCycle = c.CurrentReadingDate.DaysSince(c.LastBillDate)
	}

	c.Status = models.CycleActive
	if c.DaysInCycle > c.BillingPeriodDays {
		c.Status = models.CycleEnded
	}

	pos := t.table.Position(c.CycleConsumption)
	c.CurrentSlab = pos.CurrentSlab
	c.CurrentRate = pos.CurrentRate
	c.UnitsToNextSlab = pos.UnitsToNextSlab
	c.CostSoFar = t.table.CalculateBimonthlyBill(c.CycleConsumption).TotalAmount

	c.ProjectedConsumption = c.CycleConsumption
	if c.DaysInCycle > 0 && c.DaysInCycle < c.BillingPeriodDays {
		c.ProjectedConsumption = billing.Round2(c.CycleConsumption / float64(c.DaysInCycle) * float64(c.BillingPeriodDays))
	}
	c.ProjectedAmount = t.table.CalculateBimonthlyBill(c.ProjectedConsumption).TotalAmount

	return c
}

// Describe renders a one-line summary of the cycle for logs and the CLI.
func Describe(c models.BillingCycle) string {
	return fmt.Sprintf("%.2f units in %d days since %s (slab %s @ ₹%.2f, ends %s)",
		c.CycleConsumption, c.DaysInCycle, c.LastBillDate, c.CurrentSlab, c.CurrentRate, c.EstimatedCycleEnd)
}
