package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"wattwise/internal/config"
	"wattwise/internal/database"
	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/server"
	"wattwise/internal/service"
	"wattwise/internal/stream"
)

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

	// Redis backs the per-user lock and the async ingest stream. Without it the
	// server runs single-instance with an in-process lock.
	redisCfg := config.RedisFromConfig(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	var locker lock.Locker
	var publisher *stream.Publisher
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warnf("Redis unavailable at %s, using in-process locks: %v", redisCfg.Addr, err)
		locker = lock.NewKeyedMutex()
		if cfg.Ingest.Async {
			log.Warn("ingest.async needs Redis; readings will be applied inline")
		}
	} else {
		locker = lock.NewRedisLocker(redisClient, 0)
		if cfg.Ingest.Async {
			publisher = stream.NewPublisher(redisClient, redisCfg.Stream, log)
			log.Infof("Queuing submitted readings on stream %s", redisCfg.Stream)
		}
	}
	cancelPing()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid billing configuration: %v", err)
	}
	tracker := service.New(db, locker, log, opts)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewServer(tracker, publisher, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
}
