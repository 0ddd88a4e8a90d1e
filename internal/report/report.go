package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

const monthLayout = "2006-01"

// MonthlyReport summarizes the complete days of month ("YYYY-MM").
// A month with no recorded days has all-zero stats.
func MonthlyReport(month string, usages []models.DailyUsage) (models.MonthlyReport, error) {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return models.MonthlyReport{}, &models.ValidationError{Field: "month", Message: fmt.Sprintf("%q is not a YYYY-MM month", month)}
	}

	days := completeDays(usages, func(u models.DailyUsage) bool {
		return u.Date.MonthKey() == month
	})

	return models.MonthlyReport{
		Month:     month,
		Stats:     stats(days),
		DailyData: days,
	}, nil
}

// YearlySummary totals each month of year that has recorded days.
func YearlySummary(year int, usages []models.DailyUsage) models.YearlySummary {
	days := completeDays(usages, func(u models.DailyUsage) bool {
		return u.Date.Year() == year
	})

	byMonth := lo.GroupBy(days, func(u models.DailyUsage) string {
		return u.Date.MonthKey()
	})
	months := lo.Keys(byMonth)
	sort.Strings(months)

	summary := models.YearlySummary{Year: year, MonthlyData: make([]models.MonthTotal, 0, len(months))}
	for _, m := range months {
		s := stats(byMonth[m])
		summary.MonthlyData = append(summary.MonthlyData, models.MonthTotal{
			Month:        m,
			DaysRecorded: s.DaysRecorded,
			TotalKWh:     s.TotalKWh,
			TotalCost:    s.TotalCost,
			AvgDailyKWh:  s.AvgDailyKWh,
			AnomalyDays:  s.AnomalyDays,
		})
	}

	all := stats(days)
	summary.TotalKWh = all.TotalKWh
	summary.TotalCost = all.TotalCost
	summary.AvgDailyKWh = all.AvgDailyKWh
	summary.DaysRecorded = all.DaysRecorded
	return summary
}

func stats(days []models.DailyUsage) models.MonthlyStats {
	if len(days) == 0 {
		return models.MonthlyStats{}
	}

	kwh := lo.Map(days, func(u models.DailyUsage, _ int) float64 {
		return u.ConsumptionKWh
	})
	total := lo.Sum(kwh)

	return models.MonthlyStats{
		DaysRecorded: len(days),
		TotalKWh:     billing.Round2(total),
		TotalCost: billing.Round2(lo.SumBy(days, func(u models.DailyUsage) float64 {
			return u.Cost
		})),
		AvgDailyKWh: billing.Round2(total / float64(len(days))),
		PeakKWh:     lo.Max(kwh),
		MinKWh:      lo.Min(kwh),
		AnomalyDays: lo.CountBy(days, func(u models.DailyUsage) bool {
			return u.IsAnomaly
		}),
	}
}

// completeDays keeps complete days matching keep, in date order.
func completeDays(usages []models.DailyUsage, keep func(models.DailyUsage) bool) []models.DailyUsage {
	days := lo.Filter(usages, func(u models.DailyUsage, _ int) bool {
		return u.Complete() && keep(u)
	})
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	if days == nil {
		days = []models.DailyUsage{}
	}
	return days
}

// between keeps complete days in [from, to].
func between(usages []models.DailyUsage, from, to models.Date) []models.DailyUsage {
	return completeDays(usages, func(u models.DailyUsage) bool {
		return !u.Date.Before(from) && !u.Date.After(to)
	})
}

func totalKWh(days []models.DailyUsage) float64 {
	return lo.SumBy(days, func(u models.DailyUsage) float64 {
		return u.ConsumptionKWh
	})
}

func totalCost(days []models.DailyUsage) float64 {
	return lo.SumBy(days, func(u models.DailyUsage) float64 {
		return u.Cost
	})
}

func daysInMonth(d models.Date) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return billing.RoundTo(part/whole*100, 1)
}
