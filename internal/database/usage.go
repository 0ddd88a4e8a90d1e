package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"wattwise/internal/models"
)

var dailyUsageCols = []string{"user_id", "date", "consumption_kwh", "cost", "is_anomaly", "readings_count"}

// SaveDailyUsage inserts or replaces the usage row for u.Date.
func (db *DB) SaveDailyUsage(ctx context.Context, userID string, u models.DailyUsage) error {
	query := db.upsertSQL("daily_usage", dailyUsageCols, []string{"user_id", "date"}, dailyUsageCols[2:])
	_, err := db.exec(ctx, "UPSERT", "daily_usage", query,
		userID, u.Date, u.ConsumptionKWh, u.Cost, u.IsAnomaly, u.ReadingsCount)
	if err != nil {
		return fmt.Errorf("failed to save daily usage for %s: %w", u.Date, err)
	}
	return nil
}

// SaveDailyUsages upserts a batch of rows in one transaction.
func (db *DB) SaveDailyUsages(ctx context.Context, userID string, usages []models.DailyUsage) error {
	if len(usages) == 0 {
		return nil
	}
	defer db.recordPoolStats()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.upsertSQL("daily_usage", dailyUsageCols, []string{"user_id", "date"}, dailyUsageCols[2:]))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range usages {
		if _, err := stmt.ExecContext(ctx, userID, u.Date, u.ConsumptionKWh, u.Cost, u.IsAnomaly, u.ReadingsCount); err != nil {
			return fmt.Errorf("failed to save daily usage for %s: %w", u.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("✓ Stored %d daily usage rows", len(usages))
	return nil
}

// ListDailyUsage returns usage rows between from and to inclusive, oldest first.
func (db *DB) ListDailyUsage(ctx context.Context, userID string, from, to models.Date) ([]models.DailyUsage, error) {
	query, args := dateRange(`SELECT date, consumption_kwh, cost, is_anomaly, readings_count FROM daily_usage WHERE user_id = ?`,
		[]interface{}{userID}, from, to)
	query += " ORDER BY date ASC"

	rows, err := db.query(ctx, "daily_usage", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	usages := []models.DailyUsage{}
	for rows.Next() {
		var u models.DailyUsage
		if err := rows.Scan(&u.Date, &u.ConsumptionKWh, &u.Cost, &u.IsAnomaly, &u.ReadingsCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		usages = append(usages, u)
	}

	return usages, rows.Err()
}

// ListUsers returns every user that has recorded usage.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := db.query(ctx, "daily_usage", `SELECT DISTINCT user_id FROM daily_usage ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get users with data: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetBillingCycle returns the stored cycle anchor, or nil when no bill was imported.
// Derived fields are left zero.
func (db *DB) GetBillingCycle(ctx context.Context, userID string) (*models.BillingCycle, error) {
	row := db.queryRow(ctx, "billing_cycles", `SELECT last_bill_date, last_bill_reading, last_bill_amount, current_reading, current_reading_date, billing_period_days
		FROM billing_cycles WHERE user_id = ?`, userID)

	var (
		c      models.BillingCycle
		amount sql.NullFloat64
	)
	err := row.Scan(&c.LastBillDate, &c.LastBillReading, &amount, &c.CurrentReading, &c.CurrentReadingDate, &c.BillingPeriodDays)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan billing cycle: %w", err)
	}
	if amount.Valid {
		a := amount.Float64
		c.LastBillAmount = &a
	}
	return &c, nil
}

func (db *DB) SaveBillingCycle(ctx context.Context, userID string, c models.BillingCycle) error {
	cols := []string{"user_id", "last_bill_date", "last_bill_reading", "last_bill_amount", "current_reading", "current_reading_date", "billing_period_days"}
	query := db.upsertSQL("billing_cycles", cols, []string{"user_id"}, cols[1:])

	var amount sql.NullFloat64
	if c.LastBillAmount != nil {
		amount = sql.NullFloat64{Float64: *c.LastBillAmount, Valid: true}
	}

	_, err := db.exec(ctx, "UPSERT", "billing_cycles", query,
		userID, c.LastBillDate, c.LastBillReading, amount, c.CurrentReading, c.CurrentReadingDate, c.BillingPeriodDays)
	if err != nil {
		return fmt.Errorf("failed to save billing cycle: %w", err)
	}
	return nil
}
