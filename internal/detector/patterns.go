package detector

import (
	"time"

	"github.com/samber/lo"

	"wattwise/internal/models"
)

const minPatternDays = 7

// AnalyzeTrend compares the average of the first and second halves of the
// last days complete days. A change beyond 10% either way is a trend.
func AnalyzeTrend(usages []models.DailyUsage, days int) models.Trend {
	complete := lo.Filter(sortedByDate(usages), func(u models.DailyUsage, _ int) bool {
		return u.Complete()
	})
	if days > 0 && len(complete) > days {
		complete = complete[len(complete)-days:]
	}
	if len(complete) < 2 {
		return models.Trend{Direction: models.TrendInsufficient}
	}

	half := len(complete) / 2
	first := averageKWh(complete[:half])
	second := averageKWh(complete[half:])

	change := 0.0
	if first > 0 {
		change = (second - first) / first * 100
	}

	direction := models.TrendStable
	if change > 10 {
		direction = models.TrendIncreasing
	} else if change < -10 {
		direction = models.TrendDecreasing
	}

	return models.Trend{
		Direction:     direction,
		ChangePercent: roundTo(change, 1),
		FirstHalfAvg:  roundTo(first, 2),
		SecondHalfAvg: roundTo(second, 2),
	}
}

// DetectPatterns compares weekday and weekend consumption and finds the
// weekday with the highest and lowest average. It needs a week of data.
func DetectPatterns(usages []models.DailyUsage) (models.UsagePatterns, error) {
	complete := lo.Filter(usages, func(u models.DailyUsage, _ int) bool {
		return u.Complete()
	})
	if len(complete) < minPatternDays {
		return models.UsagePatterns{DaysAnalyzed: len(complete)}, models.ErrInsufficientData
	}

	weekend := func(u models.DailyUsage) bool {
		wd := u.Date.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	}
	weekendDays, weekdayDays := lo.FilterReject(complete, func(u models.DailyUsage, _ int) bool {
		return weekend(u)
	})

	byWeekday := lo.GroupBy(complete, func(u models.DailyUsage) time.Weekday {
		return u.Date.Weekday()
	})

	patterns := models.UsagePatterns{
		WeekdayAvg:   roundTo(averageKWh(weekdayDays), 2),
		WeekendAvg:   roundTo(averageKWh(weekendDays), 2),
		ByWeekday:    make(map[string]float64, len(byWeekday)),
		DaysAnalyzed: len(complete),
	}

	peak, low := -1.0, -1.0
	// Monday first so ties resolve the same way every time
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		days, ok := byWeekday[wd]
		if !ok {
			continue
		}
		avg := averageKWh(days)
		patterns.ByWeekday[wd.String()] = roundTo(avg, 2)
		if peak < 0 || avg > peak {
			peak = avg
			patterns.PeakDay = wd.String()
		}
		if low < 0 || avg < low {
			low = avg
			patterns.LowDay = wd.String()
		}
	}

	return patterns, nil
}

func averageKWh(usages []models.DailyUsage) float64 {
	if len(usages) == 0 {
		return 0
	}
	return lo.SumBy(usages, func(u models.DailyUsage) float64 {
		return u.ConsumptionKWh
	}) / float64(len(usages))
}
