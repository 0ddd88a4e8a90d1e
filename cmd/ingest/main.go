package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"wattwise/internal/config"
	"wattwise/internal/database"
	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/service"
	"wattwise/internal/stream"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	consumerName := flag.String("name", "", "consumer name within the group (default: hostname)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.L.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(cfg.Logging.Debug)
	defer log.Sync()

	name := *consumerName
	if name == "" {
		if name, err = os.Hostname(); err != nil {
			name = "consumer-1"
		}
	}

	redisCfg := config.RedisFromConfig(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	// Initialize database
	driver, dsn := config.GetDatabaseSettings(cfg)
	db, err := database.NewDB(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid billing configuration: %v", err)
	}
	tracker := service.New(db, lock.NewRedisLocker(redisClient, 0), log, opts)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signal
	go func() {
		<-quit
		log.Info("Shutting down ingest service...")
		cancel()
	}()

	consumer := stream.NewConsumer(redisClient, redisCfg.Stream, redisCfg.Group, name, log)
	log.Infof("Ingest started as %s in group %s, reading from stream %s. Press Ctrl+C to stop...", name, redisCfg.Group, redisCfg.Stream)

	err = consumer.Run(ctx, func(ctx context.Context, m stream.Message) error {
		_, err := tracker.SubmitReading(ctx, m.UserID, m.Reading)
		return err
	})
	if err != nil {
		log.Fatalf("Ingest stopped: %v", err)
	}
	log.Info("Ingest service stopped")
}
