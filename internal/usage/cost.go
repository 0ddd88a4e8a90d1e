package usage

import (
	"wattwise/internal/billing"
	"wattwise/internal/models"
)

// CostMode selects how a day's consumption is priced.
type CostMode string

const (
	// CostFlat multiplies by the user's flat electricity rate.
	CostFlat CostMode = "flat"
	// CostCycle charges the marginal slab cost at the day's position in the active billing cycle.
	CostCycle CostMode = "cycle"
	// CostEstimate charges the day's share of the monthly bill implied by recent usage.
	CostEstimate CostMode = "estimate"
)

type CostBasis struct {
	Mode                CostMode
	FlatRate            float64
	CyclePosition       float64
	EstimatedMonthlyKWh float64
}

// DailyCost prices kwh under basis. A nil table always prices flat.
func DailyCost(table *billing.Table, kwh float64, basis CostBasis) float64 {
	if kwh <= 0 {
		return 0
	}
	if table == nil {
		return billing.Round2(kwh * basis.FlatRate)
	}

	switch basis.Mode {
	case CostCycle:
		return table.MarginalCost(basis.CyclePosition, kwh)
	case CostEstimate:
		return table.ProratedDailyCost(kwh, basis.EstimatedMonthlyKWh)
	default:
		return billing.Round2(kwh * basis.FlatRate)
	}
}

// CyclePosition is the number of units already used in the cycle before a day
// whose morning reading is morning.
func CyclePosition(morning float64, cycle models.BillingCycle) float64 {
	pos := morning - cycle.LastBillReading
	if pos < 0 {
		return 0
	}
	return pos
}
