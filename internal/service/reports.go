package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"wattwise/internal/detector"
	"wattwise/internal/models"
	"wattwise/internal/report"
)

func monthRange(month string) (models.Date, models.Date, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return models.Date{}, models.Date{}, &models.ValidationError{Field: "month", Message: fmt.Sprintf("%q is not YYYY-MM", month)}
	}
	return models.DateOf(t), models.DateOf(t.AddDate(0, 1, -1)), nil
}

// recentFrom is the earliest day needed for a prediction: the window or the
// start of the current month, whichever is earlier.
func (t *Tracker) recentFrom(today models.Date) models.Date {
	from := today.AddDays(-t.predictionWindow)
	monthStart := today.AddDays(1 - today.Day())
	if monthStart.Before(from) {
		return monthStart
	}
	return from
}

func (t *Tracker) MonthlyReport(ctx context.Context, userID, month string) (models.MonthlyReport, error) {
	from, to, err := monthRange(month)
	if err != nil {
		return models.MonthlyReport{}, err
	}
	usages, err := t.repo.ListDailyUsage(ctx, userID, from, to)
	if err != nil {
		return models.MonthlyReport{}, err
	}
	return report.MonthlyReport(month, usages)
}

func (t *Tracker) YearlySummary(ctx context.Context, userID string, year int) (models.YearlySummary, error) {
	if year < 2000 || year > 9999 {
		return models.YearlySummary{}, &models.ValidationError{Field: "year", Message: fmt.Sprintf("%d is out of range", year)}
	}
	usages, err := t.repo.ListDailyUsage(ctx, userID, models.NewDate(year, time.January, 1), models.NewDate(year, time.December, 31))
	if err != nil {
		return models.YearlySummary{}, err
	}
	return report.YearlySummary(year, usages), nil
}

func (t *Tracker) PredictBill(ctx context.Context, userID string) (models.BillPrediction, error) {
	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, t.recentFrom(today), today)
	if err != nil {
		return models.BillPrediction{}, err
	}
	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return models.BillPrediction{}, err
	}
	return report.PredictBill(t.tableFor(settings), usages, today, t.predictionWindow), nil
}

func (t *Tracker) Dashboard(ctx context.Context, userID string) (models.DashboardSummary, error) {
	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, t.recentFrom(today), today)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	c, _, err := t.BillingCycle(ctx, userID)
	if err != nil {
		return models.DashboardSummary{}, err
	}

	prediction := report.PredictBill(t.tableFor(settings), usages, today, t.predictionWindow)
	return report.Dashboard(usages, today, prediction, c), nil
}

func (t *Tracker) WeeklyDigest(ctx context.Context, userID string) (models.WeeklyDigest, error) {
	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, today.AddDays(-14), today)
	if err != nil {
		return models.WeeklyDigest{}, err
	}
	return report.WeeklyDigest(usages, today), nil
}

// Patterns returns weekday patterns and the trend over the last days days.
// Patterns is nil when fewer than a week of complete days exist.
func (t *Tracker) Patterns(ctx context.Context, userID string, days int) (*models.UsagePatterns, models.Trend, error) {
	if days <= 0 {
		days = 30
	}
	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, today.AddDays(-days), today)
	if err != nil {
		return nil, models.Trend{}, err
	}

	trend := detector.AnalyzeTrend(usages, days)
	patterns, err := detector.DetectPatterns(usages)
	if errors.Is(err, models.ErrInsufficientData) {
		return nil, trend, nil
	}
	if err != nil {
		return nil, trend, err
	}
	return &patterns, trend, nil
}

// Anomalies rescores the last days days and returns the flagged ones, newest
// first, with the day's maximum temperature when a weather source is set.
func (t *Tracker) Anomalies(ctx context.Context, userID string, days int) ([]models.Anomaly, error) {
	if days <= 0 {
		days = 30
	}
	today := t.today()
	since := today.AddDays(-days)
	usages, err := t.repo.ListDailyUsage(ctx, userID, since.AddDays(-t.detector.WindowDays()), today)
	if err != nil {
		return nil, err
	}

	_, all := t.detector.Rescore(usages)
	anomalies := []models.Anomaly{}
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].Date.Before(since) {
			anomalies = append(anomalies, all[i])
		}
	}

	if t.weather != nil && len(anomalies) > 0 {
		t.annotateWeather(ctx, anomalies)
	}
	return anomalies, nil
}

// annotateWeather is best effort; a failed lookup leaves MaxTempC unset.
func (t *Tracker) annotateWeather(ctx context.Context, anomalies []models.Anomaly) {
	from, to := anomalies[len(anomalies)-1].Date, anomalies[0].Date
	temps, err := t.weather.DailyMaxTemperature(ctx, t.lat, t.lon, from, to)
	if err != nil {
		t.log.Warnf("Weather lookup failed: %v", err)
		return
	}
	for i := range anomalies {
		if v, ok := temps[anomalies[i].Date.String()]; ok {
			temp := v
			anomalies[i].MaxTempC = &temp
		}
	}
}

func (t *Tracker) Tips(ctx context.Context, userID string) (models.TipsReport, error) {
	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, today.AddDays(-30), today)
	if err != nil {
		return models.TipsReport{}, err
	}
	appliances, err := t.repo.ListAppliances(ctx, userID)
	if err != nil {
		return models.TipsReport{}, err
	}
	return t.suggester.SuggestTips(usages, appliances, today.YearDay()), nil
}

func (t *Tracker) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	usages, err := t.repo.ListDailyUsage(ctx, userID, models.Date{}, models.Date{})
	if err != nil {
		return err
	}
	return report.WriteCSV(w, usages)
}

func (t *Tracker) ExportAppliancesCSV(ctx context.Context, userID string, w io.Writer) error {
	appliances, err := t.repo.ListAppliances(ctx, userID)
	if err != nil {
		return err
	}
	return report.WriteAppliancesCSV(w, appliances)
}
