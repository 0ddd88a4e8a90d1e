package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"wattwise/internal/metrics"
	"wattwise/internal/models"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DB represents the database connection
type DB struct {
	conn    *sql.DB
	dialect string
}

// NewDB creates a new database connection and initializes the schema
// mysql dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
// sqlite dsn: a file path such as "wattwise.db"
func NewDB(driver, dsn string) (*DB, error) {
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{conn: conn, dialect: driver}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) Dialect() string {
	return db.dialect
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	statements := mysqlSchema
	if db.dialect == DriverSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		date DATE NOT NULL,
		time_of_day VARCHAR(10) NOT NULL,
		reading_kwh DOUBLE NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_readings_slot (user_id, date, time_of_day)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS daily_usage (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		date DATE NOT NULL,
		consumption_kwh DOUBLE NOT NULL,
		cost DOUBLE NOT NULL,
		is_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
		readings_count INT NOT NULL,
		UNIQUE KEY uq_daily_usage_day (user_id, date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS appliances (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		power_rating_watts DOUBLE NOT NULL,
		usage_hours_per_day DOUBLE NOT NULL,
		category VARCHAR(100) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_appliances_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id VARCHAR(64) PRIMARY KEY,
		electricity_rate DOUBLE NOT NULL,
		notifications_enabled BOOLEAN NOT NULL,
		weekly_digest_enabled BOOLEAN NOT NULL,
		theme VARCHAR(20) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS billing_cycles (
		user_id VARCHAR(64) PRIMARY KEY,
		last_bill_date DATE NOT NULL,
		last_bill_reading DOUBLE NOT NULL,
		last_bill_amount DOUBLE NULL,
		current_reading DOUBLE NOT NULL,
		current_reading_date DATE NOT NULL,
		billing_period_days INT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_budgets (
		user_id VARCHAR(64) PRIMARY KEY,
		monthly_kwh_goal DOUBLE NOT NULL,
		monthly_cost_goal DOUBLE NOT NULL,
		alert_threshold DOUBLE NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time_of_day TEXT NOT NULL,
		reading_kwh REAL NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, date, time_of_day)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		consumption_kwh REAL NOT NULL,
		cost REAL NOT NULL,
		is_anomaly INTEGER NOT NULL DEFAULT 0,
		readings_count INTEGER NOT NULL,
		UNIQUE(user_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS appliances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		power_rating_watts REAL NOT NULL,
		usage_hours_per_day REAL NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appliances_user ON appliances(user_id)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		electricity_rate REAL NOT NULL,
		notifications_enabled INTEGER NOT NULL,
		weekly_digest_enabled INTEGER NOT NULL,
		theme TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS billing_cycles (
		user_id TEXT PRIMARY KEY,
		last_bill_date TEXT NOT NULL,
		last_bill_reading REAL NOT NULL,
		last_bill_amount REAL,
		current_reading REAL NOT NULL,
		current_reading_date TEXT NOT NULL,
		billing_period_days INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_budgets (
		user_id TEXT PRIMARY KEY,
		monthly_kwh_goal REAL NOT NULL,
		monthly_cost_goal REAL NOT NULL,
		alert_threshold REAL NOT NULL
	)`,
}

// upsertSQL builds an insert that overwrites update columns when the key already exists.
func (db *DB) upsertSQL(table string, cols, key, update []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	sets := make([]string, len(update))
	for i, c := range update {
		if db.dialect == DriverSQLite {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
	}

	if db.dialect == DriverSQLite {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", insert, strings.Join(key, ", "), strings.Join(sets, ", "))
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", insert, strings.Join(sets, ", "))
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func (db *DB) exec(ctx context.Context, queryType, table, query string, args ...interface{}) (sql.Result, error) {
	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, query, args...)
	metrics.RecordDBQuery(queryType, table, time.Since(queryStart), err)
	return res, err
}

func (db *DB) query(ctx context.Context, table, query string, args ...interface{}) (*sql.Rows, error) {
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	return rows, err
}

func (db *DB) queryRow(ctx context.Context, table, query string, args ...interface{}) *sql.Row {
	queryStart := time.Now()
	row := db.conn.QueryRowContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), row.Err())
	return row
}

func (db *DB) recordPoolStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// dateRange appends "AND date >= ? AND date <= ?" for the non-zero bounds.
func dateRange(query string, args []interface{}, from, to models.Date) (string, []interface{}) {
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, to)
	}
	return query, args
}

// Ping checks the connection is still alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
