package billing

import (
	"math"

	"github.com/shopspring/decimal"

	"wattwise/internal/models"
)

var two = decimal.NewFromInt(2)

// CalculateBill prices units against the tiers in order. Each tier takes
// min(remaining, width) units; the unbounded tier takes the rest. Amounts are
// accumulated exactly and rounded half-up to 2 decimals only in the result.
func (t *Table) CalculateBill(units float64) models.BillCalculation {
	u := clampUnits(units)
	total, breakdown := t.walk(u)

	avg := decimal.Zero
	if u.IsPositive() {
		avg = total.Div(u)
	}

	return models.BillCalculation{
		TotalUnits:  u.Round(2).InexactFloat64(),
		TotalAmount: total.Round(2).InexactFloat64(),
		AverageRate: avg.Round(2).InexactFloat64(),
		Breakdown:   breakdown,
	}
}

// CalculateBimonthlyBill prices a bi-monthly (two month) unit count. The tiers
// are defined per bi-monthly period so this is CalculateBill.
func (t *Table) CalculateBimonthlyBill(units float64) models.BillCalculation {
	return t.CalculateBill(units)
}

// CalculateMonthlyBill estimates a month's bill as half the bi-monthly bill
// of twice the monthly units. This assumes both months of the period use the
// same amount.
func (t *Table) CalculateMonthlyBill(monthlyUnits float64) models.MonthlyEstimate {
	m := clampUnits(monthlyUnits)
	bimonthly := t.CalculateBimonthlyBill(m.Mul(two).InexactFloat64())
	half := decimal.NewFromFloat(bimonthly.TotalAmount).Div(two)

	return models.MonthlyEstimate{
		BillCalculation: models.BillCalculation{
			TotalUnits:  m.Round(2).InexactFloat64(),
			TotalAmount: half.Round(2).InexactFloat64(),
			AverageRate: bimonthly.AverageRate,
			Breakdown:   bimonthly.Breakdown,
		},
		BimonthlyUnits:  bimonthly.TotalUnits,
		BimonthlyAmount: bimonthly.TotalAmount,
	}
}

// MarginalCost is the price of units consumed after position units have
// already been used in the same billing period.
func (t *Table) MarginalCost(position, units float64) float64 {
	pos := clampUnits(position)
	before, _ := t.walk(pos)
	after, _ := t.walk(pos.Add(clampUnits(units)))
	return after.Sub(before).Round(2).InexactFloat64()
}

// ProratedDailyCost charges a day its share of the monthly bill implied by
// estimatedMonthlyKWh. A non-positive estimate defaults to dailyKWh * 30.
func (t *Table) ProratedDailyCost(dailyKWh, estimatedMonthlyKWh float64) float64 {
	daily := clampUnits(dailyKWh)
	if estimatedMonthlyKWh <= 0 {
		estimatedMonthlyKWh = daily.Mul(decimal.NewFromInt(30)).InexactFloat64()
	}
	if estimatedMonthlyKWh <= 0 {
		return 0
	}

	est := decimal.NewFromFloat(estimatedMonthlyKWh)
	monthly := decimal.NewFromFloat(t.CalculateMonthlyBill(estimatedMonthlyKWh).TotalAmount)
	return daily.Mul(monthly).Div(est).Round(2).InexactFloat64()
}

func (t *Table) walk(units decimal.Decimal) (decimal.Decimal, []models.SlabCharge) {
	total := decimal.Zero
	breakdown := []models.SlabCharge{}
	remaining := units

	for i, s := range t.slabs {
		if !remaining.IsPositive() {
			break
		}

		inSlab := remaining
		if !s.Unbounded() {
			width := decimal.NewFromFloat(*s.MaxUnit).Sub(decimal.NewFromFloat(t.lowerBound(i)))
			inSlab = decimal.Min(remaining, width)
		}

		rate := decimal.NewFromFloat(s.RatePerUnit)
		amount := inSlab.Mul(rate)
		total = total.Add(amount)

		breakdown = append(breakdown, models.SlabCharge{
			Slab:   s.Label(),
			Units:  inSlab.Round(2).InexactFloat64(),
			Rate:   s.RatePerUnit,
			Amount: amount.Round(2).InexactFloat64(),
		})

		remaining = remaining.Sub(inSlab)
	}

	return total, breakdown
}

func clampUnits(units float64) decimal.Decimal {
	if units <= 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(units)
}

// Round2 rounds half-up to 2 decimal places.
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// RoundTo rounds half-up to places decimal places. NaN and infinities become 0.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
