package report

import (
	"sort"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

const (
	// DefaultPredictionWindow is how many recent days feed a prediction.
	DefaultPredictionWindow = 30
	daysPerMonth            = 30
)

// PredictBill projects the average of the last window complete days up to
// today onto a 30-day month and prices it with the monthly estimate. With no
// data every figure is zero.
func PredictBill(table *billing.Table, usages []models.DailyUsage, today models.Date, window int) models.BillPrediction {
	if window <= 0 {
		window = DefaultPredictionWindow
	}

	recent := completeDays(usages, func(u models.DailyUsage) bool {
		return !u.Date.After(today)
	})
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if len(recent) > window {
		recent = recent[:window]
	}

	prediction := models.BillPrediction{
		SlabBreakdown: []models.SlabCharge{},
		CurrentMonth:  monthProgress(table, usages, today, 0),
	}
	if len(recent) == 0 {
		return prediction
	}

	avg := totalKWh(recent) / float64(len(recent))
	predicted := billing.Round2(avg * daysPerMonth)
	monthly := table.CalculateMonthlyBill(predicted)

	prediction.PredictedMonthlyKWh = predicted
	prediction.PredictedMonthlyCost = monthly.TotalAmount
	prediction.AvgDailyKWh = billing.Round2(avg)
	prediction.AvgDailyCost = table.ProratedDailyCost(avg, predicted)
	prediction.DaysUsed = len(recent)
	prediction.SlabBreakdown = monthly.Breakdown
	prediction.CurrentMonth = monthProgress(table, usages, today, predicted)
	return prediction
}

func monthProgress(table *billing.Table, usages []models.DailyUsage, today models.Date, predicted float64) models.MonthProgress {
	month := today.MonthKey()
	days := completeDays(usages, func(u models.DailyUsage) bool {
		return u.Date.MonthKey() == month && !u.Date.After(today)
	})
	kwh := billing.Round2(totalKWh(days))

	return models.MonthProgress{
		Month:           month,
		KWhSoFar:        kwh,
		CostSoFar:       table.CalculateMonthlyBill(kwh).TotalAmount,
		DaysRecorded:    len(days),
		DaysElapsed:     today.Day(),
		ProgressPercent: percent(kwh, predicted),
	}
}
