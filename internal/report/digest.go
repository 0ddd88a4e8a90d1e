package report

import (
	"wattwise/internal/billing"
	"wattwise/internal/models"
)

// WeeklyDigest compares the seven days ending today with the seven before.
func WeeklyDigest(usages []models.DailyUsage, today models.Date) models.WeeklyDigest {
	start := today.AddDays(-6)
	week := between(usages, start, today)
	previous := between(usages, start.AddDays(-7), start.AddDays(-1))

	kwh := totalKWh(week)
	prevKWh := totalKWh(previous)

	digest := models.WeeklyDigest{
		WeekStart:       start,
		WeekEnd:         today,
		TotalKWh:        billing.Round2(kwh),
		TotalCost:       billing.Round2(totalCost(week)),
		PreviousWeekKWh: billing.Round2(prevKWh),
		DaysRecorded:    len(week),
		Trend:           models.TrendInsufficient,
	}
	for _, u := range week {
		if u.IsAnomaly {
			digest.AnomalyDays++
		}
	}
	if len(week) > 0 {
		digest.AvgDailyKWh = billing.Round2(kwh / float64(len(week)))
	}

	if len(week) > 0 && prevKWh > 0 {
		digest.ChangePercent = billing.RoundTo((kwh-prevKWh)/prevKWh*100, 1)
		switch {
		case digest.ChangePercent > 10:
			digest.Trend = models.TrendIncreasing
		case digest.ChangePercent < -10:
			digest.Trend = models.TrendDecreasing
		default:
			digest.Trend = models.TrendStable
		}
	}
	return digest
}

// Dashboard assembles the home screen: today, the last seven days, the
// prediction and the billing cycle if one is active.
func Dashboard(usages []models.DailyUsage, today models.Date, prediction models.BillPrediction, cycle *models.BillingCycle) models.DashboardSummary {
	week := between(usages, today.AddDays(-6), today)

	summary := models.DashboardSummary{
		WeekKWh:    billing.Round2(totalKWh(week)),
		WeekCost:   billing.Round2(totalCost(week)),
		Prediction: prediction,
		Recent:     week,
		Cycle:      cycle,
	}
	for i := range usages {
		if usages[i].Date.Equal(today) {
			u := usages[i]
			summary.Today = &u
			break
		}
	}
	return summary
}

// BudgetProgress measures the current month against the budget's goals and
// projects the month end from the daily pace so far.
func BudgetProgress(table *billing.Table, budget models.Budget, usages []models.DailyUsage, today models.Date) models.BudgetStatus {
	if budget.AlertThreshold <= 0 {
		budget.AlertThreshold = 80
	}

	month := today.MonthKey()
	days := completeDays(usages, func(u models.DailyUsage) bool {
		return u.Date.MonthKey() == month && !u.Date.After(today)
	})
	kwh := totalKWh(days)
	cost := totalCost(days)

	total := daysInMonth(today)
	elapsed := today.Day()
	projected := kwh / float64(elapsed) * float64(total)

	status := models.BudgetStatus{
		Budget:        budget,
		Month:         month,
		CurrentKWh:    billing.Round2(kwh),
		CurrentCost:   billing.Round2(cost),
		KWhPercent:    percent(kwh, budget.MonthlyKWhGoal),
		CostPercent:   percent(cost, budget.MonthlyCostGoal),
		ProjectedKWh:  billing.Round2(projected),
		ProjectedCost: table.CalculateMonthlyBill(projected).TotalAmount,
		DaysRemaining: total - elapsed,
	}

	worst := status.KWhPercent
	if status.CostPercent > worst {
		worst = status.CostPercent
	}
	status.OverGoal = worst >= 100
	status.ApproachingGoal = !status.OverGoal && worst >= budget.AlertThreshold
	return status
}
