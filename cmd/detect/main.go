package main

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"wattwise/internal/config"
	"wattwise/internal/database"
	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/service"
)

const maxWorkers = 50

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.L.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(cfg.Logging.Debug)
	defer log.Sync()

	// Initialize database
	driver, dsn := config.GetDatabaseSettings(cfg)
	db, err := database.NewDB(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Rescoring takes the same per-user lock the API and ingest use
	redisCfg := config.RedisFromConfig(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid billing configuration: %v", err)
	}
	tracker := service.New(db, lock.NewRedisLocker(redisClient, 30*time.Second), log, opts)

	ctx := context.Background()
	users, err := tracker.ListUsers(ctx)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}
	if len(users) == 0 {
		log.Info("No users with daily usage yet, nothing to rescore")
		return
	}

	log.Infof("Rescoring anomalies for %d users...", len(users))

	// Run detection once (the scheduler handles repetition)
	summary := rescoreAll(ctx, tracker, users, maxWorkers)

	log.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Infof("Detection complete in %.1f seconds", summary.Duration.Seconds())
	log.Infof("  Users: %d processed, %d errors", summary.Processed, summary.Errors)
	log.Infof("  Anomalous days: %d", summary.Anomalies)
	log.Infof("  Workers: %d", summary.Workers)
	log.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Rescorer is the part of the tracker a detection run needs.
type Rescorer interface {
	RescoreAnomalies(ctx context.Context, userID string) (int, error)
}

// DetectionResult holds the results for a single user
type DetectionResult struct {
	UserID         string
	Anomalies      int
	Error          error
	ProcessingTime time.Duration
}

type Summary struct {
	Processed int
	Errors    int
	Anomalies int
	Workers   int
	Duration  time.Duration
}

func rescoreAll(ctx context.Context, r Rescorer, users []string, workers int) Summary {
	startTime := time.Now()
	log := logger.L.WithComponent("detect")

	// Configure worker pool - fewer workers if fewer users
	numWorkers := workers
	if len(users) < numWorkers {
		numWorkers = len(users)
	}

	// Create channels for job distribution and result collection
	jobs := make(chan string, len(users))
	results := make(chan DetectionResult, len(users))

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(ctx, r, jobs, results, &wg)
	}

	// Send all users to job queue
	for _, u := range users {
		jobs <- u
	}
	close(jobs)

	// Wait for all workers to finish, then close results channel
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{Workers: numWorkers}
	count := 0
	for result := range results {
		count++
		user := logger.MaskID(result.UserID)

		if result.Error != nil {
			log.Errorf("[%d/%d] ❌ %s: %v (%.1fs)",
				count, len(users), user, result.Error, result.ProcessingTime.Seconds())
			summary.Errors++
			continue
		}

		summary.Processed++
		summary.Anomalies += result.Anomalies
		log.Infof("[%d/%d] ✓ %s: %d anomalous days (%.1fs)",
			count, len(users), user, result.Anomalies, result.ProcessingTime.Seconds())
	}

	summary.Duration = time.Since(startTime)
	return summary
}

// worker rescores users from the jobs channel
func worker(ctx context.Context, r Rescorer, jobs <-chan string, results chan<- DetectionResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for userID := range jobs {
		startTime := time.Now()
		n, err := r.RescoreAnomalies(ctx, userID)
		results <- DetectionResult{
			UserID:         userID,
			Anomalies:      n,
			Error:          err,
			ProcessingTime: time.Since(startTime),
		}
	}
}
