package config

import (
	"fmt"
	"os"
)

// Returns the MySQL connection string
// It checks for environment variables first, then falls back to a default
func GetDatabaseDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}

	return "wattwise:wattwise@tcp(localhost:3306)/wattwise?parseTime=true"
}

// GetDatabaseSettings resolves the driver and DSN. DB_DRIVER overrides the
// configured driver; a DSN in the config file wins over the environment.
func GetDatabaseSettings(cfg *Config) (driver, dsn string) {
	driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	if driver == "" {
		driver = "mysql"
	}

	if cfg.Database.DSN != "" {
		return driver, cfg.Database.DSN
	}
	if driver == "sqlite" {
		return driver, getEnv("SQLITE_PATH", "wattwise.db")
	}
	return driver, GetDatabaseDSN()
}
