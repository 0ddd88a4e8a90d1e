package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

// RedisFromConfig starts from the config file's redis section and lets the
// environment override it.
func RedisFromConfig(cfg *Config) RedisConfig {
	rc := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", cfg.Redis.Addr),
		Password: getEnv("REDIS_PASSWORD", cfg.Redis.Password),
		DB:       cfg.Redis.DB,
		Stream:   getEnv("REDIS_STREAM", cfg.Redis.Stream),
		Group:    getEnv("REDIS_GROUP", cfg.Redis.Group),
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			rc.DB = parsed
		}
	}
	return rc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
