// Package service applies readings, bills and settings for one user at a
// time and assembles the reports served by the API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wattwise/internal/billing"
	"wattwise/internal/cycle"
	"wattwise/internal/detector"
	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/metrics"
	"wattwise/internal/models"
	"wattwise/internal/report"
	"wattwise/internal/usage"
)

// Options configures a Tracker. Zero values select the defaults.
type Options struct {
	// Tariff prices consumption. Nil prices every unit at the user's flat electricity rate.
	Tariff           *billing.Table
	CycleDays        int
	Detector         *detector.AnomalyDetector
	PredictionWindow int
	Weather          TemperatureSource
	Latitude         float64
	Longitude        float64
	Clock            func() time.Time
}

type Tracker struct {
	repo             Repository
	locker           lock.Locker
	log              *logger.Logger
	tariff           *billing.Table
	cycleDays        int
	detector         *detector.AnomalyDetector
	suggester        *detector.TipSuggester
	predictionWindow int
	weather          TemperatureSource
	lat, lon         float64
	now              func() time.Time
}

func New(repo Repository, locker lock.Locker, log *logger.Logger, opts Options) *Tracker {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.Detector == nil {
		opts.Detector = detector.NewAnomalyDetector()
	}
	if opts.CycleDays <= 0 {
		opts.CycleDays = cycle.DefaultCycleDays
	}
	if opts.PredictionWindow <= 0 {
		opts.PredictionWindow = report.DefaultPredictionWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Tracker{
		repo:             repo,
		locker:           locker,
		log:              log.WithComponent("service"),
		tariff:           opts.Tariff,
		cycleDays:        opts.CycleDays,
		detector:         opts.Detector,
		suggester:        detector.NewTipSuggester(),
		predictionWindow: opts.PredictionWindow,
		weather:          opts.Weather,
		lat:              opts.Latitude,
		lon:              opts.Longitude,
		now:              opts.Clock,
	}
}

func (t *Tracker) today() models.Date {
	return models.DateOf(t.now())
}

// tableFor is the tariff, or a flat table at the user's rate in flat mode.
func (t *Tracker) tableFor(settings models.UserSettings) *billing.Table {
	if t.tariff != nil {
		return t.tariff
	}
	return billing.FlatTable(settings.ElectricityRate)
}

func (t *Tracker) cycleTracker(settings models.UserSettings) *cycle.Tracker {
	return cycle.NewTracker(t.tableFor(settings), t.cycleDays)
}

func (t *Tracker) withUserLock(ctx context.Context, userID string, fn func() error) error {
	unlock, err := t.locker.Lock(ctx, lock.UserKey(userID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func requireUser(userID string) error {
	if userID == "" {
		return &models.ValidationError{Field: "user_id", Message: "is required"}
	}
	return nil
}

// SubmitReading stores a new reading and returns the recomputed day. A second
// reading for the same day and time of day returns models.ErrConflict.
func (t *Tracker) SubmitReading(ctx context.Context, userID string, r models.MeterReading) (models.DailyUsage, error) {
	if err := requireUser(userID); err != nil {
		return models.DailyUsage{}, err
	}
	if err := r.Validate(); err != nil {
		return models.DailyUsage{}, err
	}

	var day models.DailyUsage
	err := t.withUserLock(ctx, userID, func() error {
		if err := t.repo.InsertReading(ctx, userID, r); err != nil {
			return err
		}
		var err error
		if day, err = t.recompute(ctx, userID, r.Date); err != nil {
			return err
		}
		return t.rescoreFollowing(ctx, userID, r.Date)
	})
	metrics.RecordReading(err, errors.Is(err, models.ErrConflict))
	if err != nil {
		return models.DailyUsage{}, err
	}

	t.log.WithUser(userID).Infow("reading stored",
		"date", r.Date, "time_of_day", r.TimeOfDay, "consumption_kwh", day.ConsumptionKWh, "cost", day.Cost)
	return day, nil
}

// EditReading overwrites an existing reading and recomputes its day.
func (t *Tracker) EditReading(ctx context.Context, userID string, r models.MeterReading) (models.DailyUsage, error) {
	if err := requireUser(userID); err != nil {
		return models.DailyUsage{}, err
	}
	if err := r.Validate(); err != nil {
		return models.DailyUsage{}, err
	}

	var day models.DailyUsage
	err := t.withUserLock(ctx, userID, func() error {
		if err := t.repo.UpdateReading(ctx, userID, r); err != nil {
			return err
		}
		var err error
		if day, err = t.recompute(ctx, userID, r.Date); err != nil {
			return err
		}
		return t.rescoreFollowing(ctx, userID, r.Date)
	})
	if err != nil {
		return models.DailyUsage{}, err
	}

	t.log.WithUser(userID).Infow("reading edited", "date", r.Date, "time_of_day", r.TimeOfDay)
	return day, nil
}

// recompute derives date's usage from its stored readings, prices it, scores
// it and stores it, refreshing the billing cycle on the way. The caller holds
// the user lock.
func (t *Tracker) recompute(ctx context.Context, userID string, date models.Date) (models.DailyUsage, error) {
	readings, err := t.repo.ReadingsForDate(ctx, userID, date)
	if err != nil {
		return models.DailyUsage{}, err
	}
	pair, err := usage.PairReadings(date, readings)
	if err != nil {
		return models.DailyUsage{}, err
	}
	day, err := usage.DeriveDailyUsage(date, readings)
	if err != nil {
		return models.DailyUsage{}, err
	}

	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return models.DailyUsage{}, err
	}
	table := t.tableFor(settings)

	active, err := t.refreshCycle(ctx, userID, settings)
	if err != nil {
		return models.DailyUsage{}, err
	}

	history, err := t.repo.ListDailyUsage(ctx, userID, date.AddDays(-t.historyDays()), date.AddDays(-1))
	if err != nil {
		return models.DailyUsage{}, err
	}

	basis := t.costBasis(settings, active, pair, date, history)
	day.Cost = usage.DailyCost(table, day.ConsumptionKWh, basis)

	if day.Complete() {
		a := t.detector.Assess(day.ConsumptionKWh, t.detector.HistoryBefore(date, history))
		day.IsAnomaly = a.IsAnomaly
		if a.IsAnomaly {
			metrics.AnomaliesFlagged.Inc()
			t.log.WithUser(userID).Warnw("unusual consumption",
				"date", date, "consumption_kwh", day.ConsumptionKWh, "mean", a.Mean, "z_score", a.ZScore, "severity", a.Severity)
		}
	}

	if err := t.repo.SaveDailyUsage(ctx, userID, day); err != nil {
		return models.DailyUsage{}, err
	}
	return day, nil
}

// historyDays covers both the anomaly window and the estimate window.
func (t *Tracker) historyDays() int {
	if w := t.detector.WindowDays(); w > t.predictionWindow {
		return w
	}
	return t.predictionWindow
}

// rescoreFollowing refreshes the anomaly flags of the days whose window
// includes date. Their costs are left as they were. The caller holds the user lock.
func (t *Tracker) rescoreFollowing(ctx context.Context, userID string, date models.Date) error {
	window := t.detector.WindowDays()
	usages, err := t.repo.ListDailyUsage(ctx, userID, date.AddDays(1-window), date.AddDays(window))
	if err != nil {
		return err
	}

	before := make(map[string]bool, len(usages))
	for _, u := range usages {
		before[u.Date.String()] = u.IsAnomaly
	}

	rescored, _ := t.detector.Rescore(usages)
	var changed []models.DailyUsage
	for _, u := range rescored {
		if u.Date.After(date) && before[u.Date.String()] != u.IsAnomaly {
			changed = append(changed, u)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if err := t.repo.SaveDailyUsages(ctx, userID, changed); err != nil {
		return fmt.Errorf("failed to store rescored days: %w", err)
	}
	t.log.WithUser(userID).Infof("Rescored %d days after %s", len(changed), date)
	return nil
}

// costBasis decides how a day is priced: flat when no tariff is configured,
// the marginal slab cost when an active cycle covers the day and its morning
// reading is known, otherwise the day's share of the estimated monthly bill.
func (t *Tracker) costBasis(settings models.UserSettings, active *models.BillingCycle, pair usage.Pair, date models.Date, history []models.DailyUsage) usage.CostBasis {
	if t.tariff == nil {
		return usage.CostBasis{Mode: usage.CostFlat, FlatRate: settings.ElectricityRate}
	}

	if active != nil && active.Status == models.CycleActive && active.Contains(date) && pair.Morning != nil {
		return usage.CostBasis{
			Mode:          usage.CostCycle,
			CyclePosition: usage.CyclePosition(pair.Morning.ReadingKWh, *active),
		}
	}

	since := date.AddDays(-t.predictionWindow)
	var total float64
	var n int
	for _, u := range history {
		if u.Complete() && !u.Date.Before(since) {
			total += u.ConsumptionKWh
			n++
		}
	}
	basis := usage.CostBasis{Mode: usage.CostEstimate}
	if n > 0 {
		basis.EstimatedMonthlyKWh = total / float64(n) * 30
	}
	return basis
}

// refreshCycle rebuilds the stored cycle's current reading from every reading
// since the bill and saves it. It returns nil when no bill was imported.
func (t *Tracker) refreshCycle(ctx context.Context, userID string, settings models.UserSettings) (*models.BillingCycle, error) {
	stored, err := t.repo.GetBillingCycle(ctx, userID)
	if err != nil || stored == nil {
		return nil, err
	}

	readings, err := t.repo.ListReadings(ctx, userID, stored.LastBillDate, models.Date{})
	if err != nil {
		return nil, err
	}

	base := *stored
	base.CurrentReading = base.LastBillReading
	base.CurrentReadingDate = base.LastBillDate
	refreshed := t.cycleTracker(settings).RefreshFromReadings(base, readings)

	if refreshed.CurrentReading != stored.CurrentReading || !refreshed.CurrentReadingDate.Equal(stored.CurrentReadingDate) {
		if err := t.repo.SaveBillingCycle(ctx, userID, refreshed); err != nil {
			return nil, err
		}
	}
	return &refreshed, nil
}

// ImportBill starts a new billing cycle from a bill and applies any readings
// already taken since its date.
func (t *Tracker) ImportBill(ctx context.Context, userID string, date models.Date, reading float64, amount *float64) (models.BillingCycle, error) {
	if err := requireUser(userID); err != nil {
		return models.BillingCycle{}, err
	}

	var c models.BillingCycle
	err := t.withUserLock(ctx, userID, func() error {
		settings, err := t.repo.GetSettings(ctx, userID)
		if err != nil {
			return err
		}
		ct := t.cycleTracker(settings)

		c, err = ct.ImportBill(date, reading, amount)
		if err != nil {
			return err
		}

		readings, err := t.repo.ListReadings(ctx, userID, date, models.Date{})
		if err != nil {
			return err
		}
		c = ct.RefreshFromReadings(c, readings)
		return t.repo.SaveBillingCycle(ctx, userID, c)
	})
	metrics.RecordBillImport(err)
	if err != nil {
		return models.BillingCycle{}, err
	}

	t.log.WithUser(userID).Infow("bill imported", "cycle", cycle.Describe(c))
	return c, nil
}

// BillingCycle returns the user's current cycle with every derived field
// filled in, and its lifecycle state. The cycle is nil before a bill is imported.
func (t *Tracker) BillingCycle(ctx context.Context, userID string) (*models.BillingCycle, cycle.State, error) {
	stored, err := t.repo.GetBillingCycle(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	ct := t.cycleTracker(settings)
	if stored == nil {
		return nil, ct.State(nil), nil
	}

	c := ct.AsOf(*stored, t.today())
	return &c, ct.State(&c), nil
}

func (t *Tracker) ListReadings(ctx context.Context, userID string, from, to models.Date) ([]models.MeterReading, error) {
	return t.repo.ListReadings(ctx, userID, from, to)
}

// DailyUsage returns the latest limit days, newest first. limit <= 0 returns all.
func (t *Tracker) DailyUsage(ctx context.Context, userID string, limit int) ([]models.DailyUsage, error) {
	usages, err := t.repo.ListDailyUsage(ctx, userID, models.Date{}, models.Date{})
	if err != nil {
		return nil, err
	}

	out := make([]models.DailyUsage, 0, len(usages))
	for i := len(usages) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, usages[i])
	}
	return out, nil
}

// RescoreAnomalies recomputes every stored day's anomaly flag against its own
// trailing window and returns how many days are flagged.
func (t *Tracker) RescoreAnomalies(ctx context.Context, userID string) (int, error) {
	var flagged int
	err := t.withUserLock(ctx, userID, func() error {
		usages, err := t.repo.ListDailyUsage(ctx, userID, models.Date{}, models.Date{})
		if err != nil {
			return err
		}

		before := make(map[string]bool, len(usages))
		for _, u := range usages {
			before[u.Date.String()] = u.IsAnomaly
		}

		rescored, anomalies := t.detector.Rescore(usages)
		flagged = len(anomalies)

		var changed []models.DailyUsage
		for _, u := range rescored {
			if before[u.Date.String()] != u.IsAnomaly {
				changed = append(changed, u)
			}
		}
		if len(changed) == 0 {
			return nil
		}
		if err := t.repo.SaveDailyUsages(ctx, userID, changed); err != nil {
			return fmt.Errorf("failed to store rescored days: %w", err)
		}
		t.log.WithUser(userID).Infof("Rescored %d days, %d changed", len(rescored), len(changed))
		return nil
	})
	return flagged, err
}

// RebuildUsage re-derives every day that has readings, oldest first, so each
// day is priced and scored against the rebuilt days before it. It returns the
// number of days rebuilt.
func (t *Tracker) RebuildUsage(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}

	var rebuilt int
	err := t.withUserLock(ctx, userID, func() error {
		readings, err := t.repo.ListReadings(ctx, userID, models.Date{}, models.Date{})
		if err != nil {
			return err
		}
		days, err := usage.DeriveAll(readings)
		if err != nil {
			return err
		}
		for _, d := range days {
			if _, err := t.recompute(ctx, userID, d.Date); err != nil {
				return fmt.Errorf("failed to rebuild %s: %w", d.Date, err)
			}
			rebuilt++
		}
		return nil
	})
	if err != nil {
		return rebuilt, err
	}

	t.log.WithUser(userID).Infof("Rebuilt %d days of usage", rebuilt)
	return rebuilt, nil
}

func (t *Tracker) ListUsers(ctx context.Context) ([]string, error) {
	return t.repo.ListUsers(ctx)
}
