package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wattwise/internal/models"
)

// GetSettings returns the user's settings, or the defaults when none were saved.
func (db *DB) GetSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	row := db.queryRow(ctx, "user_settings", `SELECT electricity_rate, notifications_enabled, weekly_digest_enabled, theme
		FROM user_settings WHERE user_id = ?`, userID)

	var s models.UserSettings
	err := row.Scan(&s.ElectricityRate, &s.NotificationsEnabled, &s.WeeklyDigestEnabled, &s.Theme)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to scan settings: %w", err)
	}
	return s, nil
}

func (db *DB) SaveSettings(ctx context.Context, userID string, s models.UserSettings) error {
	cols := []string{"user_id", "electricity_rate", "notifications_enabled", "weekly_digest_enabled", "theme"}
	query := db.upsertSQL("user_settings", cols, []string{"user_id"}, cols[1:])
	_, err := db.exec(ctx, "UPSERT", "user_settings", query,
		userID, s.ElectricityRate, s.NotificationsEnabled, s.WeeklyDigestEnabled, s.Theme)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetBudget returns nil when the user has not set a budget.
func (db *DB) GetBudget(ctx context.Context, userID string) (*models.Budget, error) {
	row := db.queryRow(ctx, "user_budgets", `SELECT monthly_kwh_goal, monthly_cost_goal, alert_threshold
		FROM user_budgets WHERE user_id = ?`, userID)

	var b models.Budget
	err := row.Scan(&b.MonthlyKWhGoal, &b.MonthlyCostGoal, &b.AlertThreshold)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget: %w", err)
	}
	return &b, nil
}

func (db *DB) SaveBudget(ctx context.Context, userID string, b models.Budget) error {
	cols := []string{"user_id", "monthly_kwh_goal", "monthly_cost_goal", "alert_threshold"}
	query := db.upsertSQL("user_budgets", cols, []string{"user_id"}, cols[1:])
	_, err := db.exec(ctx, "UPSERT", "user_budgets", query, userID, b.MonthlyKWhGoal, b.MonthlyCostGoal, b.AlertThreshold)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// AddAppliance stores a. The caller assigns a.ID.
func (db *DB) AddAppliance(ctx context.Context, userID string, a models.Appliance) error {
	query := `INSERT INTO appliances (id, user_id, name, power_rating_watts, usage_hours_per_day, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.exec(ctx, "INSERT", "appliances", query,
		a.ID, userID, a.Name, a.PowerRatingWatts, a.UsageHoursPerDay, a.Category, time.Now().UTC())
	if isDuplicate(err) {
		return fmt.Errorf("appliance %s: %w", a.ID, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert appliance: %w", err)
	}
	return nil
}

// ListAppliances returns the user's appliances in the order they were added.
func (db *DB) ListAppliances(ctx context.Context, userID string) ([]models.Appliance, error) {
	rows, err := db.query(ctx, "appliances", `SELECT id, name, power_rating_watts, usage_hours_per_day, category
		FROM appliances WHERE user_id = ? ORDER BY created_at ASC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appliances: %w", err)
	}
	defer rows.Close()

	appliances := []models.Appliance{}
	for rows.Next() {
		var a models.Appliance
		if err := rows.Scan(&a.ID, &a.Name, &a.PowerRatingWatts, &a.UsageHoursPerDay, &a.Category); err != nil {
			return nil, fmt.Errorf("failed to scan appliance: %w", err)
		}
		appliances = append(appliances, a)
	}

	return appliances, rows.Err()
}

func (db *DB) DeleteAppliance(ctx context.Context, userID, id string) error {
	res, err := db.exec(ctx, "DELETE", "appliances", `DELETE FROM appliances WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete appliance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete appliance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("appliance %s: %w", id, models.ErrNotFound)
	}
	return nil
}
