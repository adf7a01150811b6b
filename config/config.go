package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Storage configuration
	DatabaseDriver string // "sqlite" or "postgres"
	DatabasePath   string
	PostgresDSN    string

	// Redis configuration (new-item notification stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (fetch backoff cache)
	MemcacheAddr string

	// Scraping configuration
	MarketplaceOrigin string
	DefaultSearchURL  string
	WindowMinutes     int
	FetchBlockTime    int

	// Monitor pacing
	CycleInterval time.Duration
	TaskDelay     time.Duration

	// Summarizer configuration
	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	windowMinutes, _ := strconv.Atoi(getEnv("WINDOW_MINUTES", "45"))
	blockTime, _ := strconv.Atoi(getEnv("FETCH_BLOCK_TIME_SECONDS", "300"))
	cycleInterval, _ := strconv.Atoi(getEnv("CYCLE_INTERVAL_SECONDS", "60"))
	taskDelay, _ := strconv.Atoi(getEnv("TASK_DELAY_SECONDS", "3"))

	return Config{
		DatabaseDriver:       getEnv("DATABASE_DRIVER", "sqlite"),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/monitor.db"),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "newitems"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		MarketplaceOrigin:    getEnv("MARKETPLACE_ORIGIN", "https://www.olx.pl"),
		DefaultSearchURL:     getEnv("DEFAULT_SEARCH_URL", ""),
		WindowMinutes:        windowMinutes,
		FetchBlockTime:       blockTime,
		CycleInterval:        time.Duration(cycleInterval) * time.Second,
		TaskDelay:            time.Duration(taskDelay) * time.Second,
		GroqAPIKey:           getEnv("GROQ_API_KEY", ""),
		GroqModel:            getEnv("GROQ_MODEL_NAME", ""),
		GroqBaseURL:          getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		Environment:          getEnv("MONITOR_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if c.GroqModel == "" {
		return fmt.Errorf("GROQ_MODEL_NAME must be set")
	}
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("WINDOW_MINUTES must be positive")
	}
	if c.RedisStreamCount <= 0 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
