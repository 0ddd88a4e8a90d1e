package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"

	"wattwise/internal/config"
	"wattwise/internal/logger"
	"wattwise/internal/models"
	"wattwise/internal/stream"
)

// readingRow is one line of a readings export: user_id,date,time_of_day,reading_kwh
type readingRow struct {
	UserID     string      `csv:"user_id"`
	Date       models.Date `csv:"date"`
	TimeOfDay  string      `csv:"time_of_day"`
	ReadingKWh float64     `csv:"reading_kwh"`
}

type job struct {
	line    int
	userID  string
	reading models.MeterReading
}

// parseReadings decodes the CSV and splits it into publishable jobs and
// rejected lines. Line numbers count the header as line 1.
func parseReadings(in io.Reader, defaultUser string) ([]job, []string, error) {
	var rows []*readingRow
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	var jobs []job
	var rejected []string
	for i, row := range rows {
		line := i + 2
		user := strings.TrimSpace(row.UserID)
		if user == "" {
			user = defaultUser
		}
		if user == "" {
			rejected = append(rejected, fmt.Sprintf("line %d: missing user_id", line))
			continue
		}

		r := models.MeterReading{
			Date:       row.Date,
			TimeOfDay:  models.TimeOfDay(strings.ToLower(strings.TrimSpace(row.TimeOfDay))),
			ReadingKWh: row.ReadingKWh,
		}
		if err := r.Validate(); err != nil {
			rejected = append(rejected, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		jobs = append(jobs, job{line: line, userID: user, reading: r})
	}
	return jobs, rejected, nil
}

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	csvPath := flag.String("file", "readings.csv", "CSV file with user_id,date,time_of_day,reading_kwh")
	defaultUser := flag.String("user", "", "user id for rows without one")
	dryRun := flag.Bool("dry-run", false, "validate the file without publishing")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.L.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(cfg.Logging.Debug)
	defer log.Sync()

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	jobs, rejected, err := parseReadings(file, *defaultUser)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, msg := range rejected {
		log.Warnf("Skipping %s", msg)
	}
	log.Infof("Parsed %d readings, skipped %d", len(jobs), len(rejected))
	if *dryRun {
		return
	}

	redisCfg := config.RedisFromConfig(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	publisher := stream.NewPublisher(redisClient, redisCfg.Stream, log)
	ctx := context.Background()

	published := 0
	for _, j := range jobs {
		if err := publisher.Publish(ctx, j.userID, j.reading, "import"); err != nil {
			log.Errorf("Failed to publish line %d: %v", j.line, err)
			continue
		}
		published++
	}

	log.Infof("Import completed: %d published, %d skipped, %d failed",
		published, len(rejected), len(jobs)-published)
}
