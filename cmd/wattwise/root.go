package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wattwise/internal/config"
	"wattwise/internal/database"
	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/service"
)

var (
	cfgFile string
	dbPath  string
	userID  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wattwise",
	Short: "Track household electricity use against a slab tariff",
	Long: `WattWise records morning and night meter readings, derives daily consumption,
prices it against the Tamil Nadu bi-monthly slab tariff and tracks the running
billing cycle. Data is kept in a local SQLite database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./wattwise.db)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "household the readings belong to")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log what the tracker does")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		return p
	}
	return "wattwise.db"
}

// openTracker opens the local database and builds a tracker over it. The
// returned func closes the database.
func openTracker() (*service.Tracker, func(), error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.Nop()
	if verbose {
		log = logger.Init(true)
	}

	path := getDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := database.NewDB(database.DriverSQLite, path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	// The CLI never looks up weather
	opts.Weather = nil

	tracker := service.New(db, lock.NewKeyedMutex(), log, opts)
	return tracker, func() {
		db.Close()
		log.Sync()
	}, nil
}
