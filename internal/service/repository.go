package service

import (
	"context"

	"wattwise/internal/models"
)

// Repository is the per-user store the tracker works against. A zero Date
// bound on a range query is open. database.DB implements it.
type Repository interface {
	InsertReading(ctx context.Context, userID string, r models.MeterReading) error
	UpdateReading(ctx context.Context, userID string, r models.MeterReading) error
	ReadingsForDate(ctx context.Context, userID string, date models.Date) ([]models.MeterReading, error)
	ListReadings(ctx context.Context, userID string, from, to models.Date) ([]models.MeterReading, error)

	SaveDailyUsage(ctx context.Context, userID string, u models.DailyUsage) error
	SaveDailyUsages(ctx context.Context, userID string, usages []models.DailyUsage) error
	ListDailyUsage(ctx context.Context, userID string, from, to models.Date) ([]models.DailyUsage, error)
	ListUsers(ctx context.Context) ([]string, error)

	GetBillingCycle(ctx context.Context, userID string) (*models.BillingCycle, error)
	SaveBillingCycle(ctx context.Context, userID string, c models.BillingCycle) error

	GetSettings(ctx context.Context, userID string) (models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, s models.UserSettings) error
	GetBudget(ctx context.Context, userID string) (*models.Budget, error)
	SaveBudget(ctx context.Context, userID string, b models.Budget) error

	AddAppliance(ctx context.Context, userID string, a models.Appliance) error
	ListAppliances(ctx context.Context, userID string) ([]models.Appliance, error)
	DeleteAppliance(ctx context.Context, userID, id string) error
}

// TemperatureSource supplies daily maximum temperatures keyed by "2006-01-02".
type TemperatureSource interface {
	DailyMaxTemperature(ctx context.Context, lat, lon float64, from, to models.Date) (map[string]float64, error)
}
