package database

import (
	"context"
	"fmt"
	"time"

	"wattwise/internal/models"
)

// InsertReading stores a new reading. A reading already stored for the same
// user, date and time of day returns models.ErrConflict.
func (db *DB) InsertReading(ctx context.Context, userID string, r models.MeterReading) error {
	defer db.recordPoolStats()

	now := time.Now().UTC()
	query := `INSERT INTO readings (user_id, date, time_of_day, reading_kwh, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.exec(ctx, "INSERT", "readings", query, userID, r.Date, string(r.TimeOfDay), r.ReadingKWh, now, now)
	if isDuplicate(err) {
		return fmt.Errorf("%s %s reading already recorded: %w", r.Date, r.TimeOfDay, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// UpdateReading overwrites an existing reading's value.
func (db *DB) UpdateReading(ctx context.Context, userID string, r models.MeterReading) error {
	query := `UPDATE readings SET reading_kwh = ?, updated_at = ? WHERE user_id = ? AND date = ? AND time_of_day = ?`
	res, err := db.exec(ctx, "UPDATE", "readings", query, r.ReadingKWh, time.Now().UTC(), userID, r.Date, string(r.TimeOfDay))
	if err != nil {
		return fmt.Errorf("failed to update reading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update reading: %w", err)
	}
	if n == 0 {
		// MySQL reports 0 for an unchanged value, so check the row exists
		var count int
		row := db.queryRow(ctx, "readings", `SELECT COUNT(*) FROM readings WHERE user_id = ? AND date = ? AND time_of_day = ?`,
			userID, r.Date, string(r.TimeOfDay))
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("failed to check reading: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%s %s reading: %w", r.Date, r.TimeOfDay, models.ErrNotFound)
		}
	}
	return nil
}

// ReadingsForDate returns the readings of one day.
func (db *DB) ReadingsForDate(ctx context.Context, userID string, date models.Date) ([]models.MeterReading, error) {
	return db.ListReadings(ctx, userID, date, date)
}

// ListReadings returns readings between from and to inclusive, oldest first.
// A zero bound is open.
func (db *DB) ListReadings(ctx context.Context, userID string, from, to models.Date) ([]models.MeterReading, error) {
	query, args := dateRange(`SELECT date, time_of_day, reading_kwh FROM readings WHERE user_id = ?`,
		[]interface{}{userID}, from, to)
	query += " ORDER BY date ASC, time_of_day ASC"

	rows, err := db.query(ctx, "readings", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []models.MeterReading{}
	for rows.Next() {
		var (
			r   models.MeterReading
			tod string
		)
		if err := rows.Scan(&r.Date, &tod, &r.ReadingKWh); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.TimeOfDay = models.TimeOfDay(tod)
		readings = append(readings, r)
	}

	return readings, rows.Err()
}
