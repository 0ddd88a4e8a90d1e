package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"wattwise/internal/models"
	"wattwise/internal/report"
)

func (t *Tracker) Settings(ctx context.Context, userID string) (models.UserSettings, error) {
	return t.repo.GetSettings(ctx, userID)
}

func (t *Tracker) UpdateSettings(ctx context.Context, userID string, s models.UserSettings) (models.UserSettings, error) {
	if err := requireUser(userID); err != nil {
		return models.UserSettings{}, err
	}
	if s.ElectricityRate <= 0 {
		return models.UserSettings{}, &models.ValidationError{Field: "electricity_rate", Message: "must be positive"}
	}
	if s.Theme == "" {
		s.Theme = models.DefaultSettings().Theme
	}
	if err := t.repo.SaveSettings(ctx, userID, s); err != nil {
		return models.UserSettings{}, err
	}
	return s, nil
}

// AddAppliance assigns the appliance an id and stores it.
func (t *Tracker) AddAppliance(ctx context.Context, userID string, a models.Appliance) (models.Appliance, error) {
	if err := requireUser(userID); err != nil {
		return models.Appliance{}, err
	}
	a.Name = strings.TrimSpace(a.Name)
	switch {
	case a.Name == "":
		return models.Appliance{}, &models.ValidationError{Field: "name", Message: "is required"}
	case a.PowerRatingWatts <= 0:
		return models.Appliance{}, &models.ValidationError{Field: "power_rating_watts", Message: "must be positive"}
	case a.UsageHoursPerDay < 0 || a.UsageHoursPerDay > 24:
		return models.Appliance{}, &models.ValidationError{Field: "usage_hours_per_day", Message: "must be between 0 and 24"}
	}
	if a.Category == "" {
		a.Category = "other"
	}

	a.ID = uuid.NewString()
	if err := t.repo.AddAppliance(ctx, userID, a); err != nil {
		return models.Appliance{}, err
	}
	return a, nil
}

func (t *Tracker) ListAppliances(ctx context.Context, userID string) ([]models.Appliance, error) {
	return t.repo.ListAppliances(ctx, userID)
}

func (t *Tracker) DeleteAppliance(ctx context.Context, userID, id string) error {
	return t.repo.DeleteAppliance(ctx, userID, id)
}

// Budget returns progress against the user's budget, or nil when none is set.
func (t *Tracker) Budget(ctx context.Context, userID string) (*models.BudgetStatus, error) {
	b, err := t.repo.GetBudget(ctx, userID)
	if err != nil || b == nil {
		return nil, err
	}

	today := t.today()
	usages, err := t.repo.ListDailyUsage(ctx, userID, today.AddDays(1-today.Day()), today)
	if err != nil {
		return nil, err
	}
	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := report.BudgetProgress(t.tableFor(settings), *b, usages, today)
	return &status, nil
}

func (t *Tracker) SaveBudget(ctx context.Context, userID string, b models.Budget) (*models.BudgetStatus, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	switch {
	case b.MonthlyKWhGoal < 0 || b.MonthlyCostGoal < 0:
		return nil, &models.ValidationError{Field: "budget", Message: "goals must not be negative"}
	case b.MonthlyKWhGoal == 0 && b.MonthlyCostGoal == 0:
		return nil, &models.ValidationError{Field: "budget", Message: "set a kWh or cost goal"}
	case b.AlertThreshold < 0 || b.AlertThreshold > 100:
		return nil, &models.ValidationError{Field: "alert_threshold", Message: "must be between 0 and 100"}
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = 80
	}

	if err := t.repo.SaveBudget(ctx, userID, b); err != nil {
		return nil, err
	}
	return t.Budget(ctx, userID)
}

// Slabs lists the tariff the user is billed under.
func (t *Tracker) Slabs(ctx context.Context, userID string) ([]models.SlabInfo, error) {
	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return t.tableFor(settings).Info(), nil
}

// CalculateBill prices units for a "monthly" or "bimonthly" period.
func (t *Tracker) CalculateBill(ctx context.Context, userID string, units float64, period string) (models.MonthlyEstimate, error) {
	if units < 0 {
		return models.MonthlyEstimate{}, &models.ValidationError{Field: "units", Message: "must not be negative"}
	}
	settings, err := t.repo.GetSettings(ctx, userID)
	if err != nil {
		return models.MonthlyEstimate{}, err
	}
	table := t.tableFor(settings)

	switch period {
	case "", "monthly":
		return table.CalculateMonthlyBill(units), nil
	case "bimonthly":
		bill := table.CalculateBimonthlyBill(units)
		return models.MonthlyEstimate{
			BillCalculation: bill,
			BimonthlyUnits:  bill.TotalUnits,
			BimonthlyAmount: bill.TotalAmount,
		}, nil
	default:
		return models.MonthlyEstimate{}, &models.ValidationError{Field: "period", Message: "must be monthly or bimonthly"}
	}
}
