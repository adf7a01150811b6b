package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topn/olxmonitor/config"
	"topn/olxmonitor/internal/scraper"
	"topn/olxmonitor/internal/summary"
	"topn/olxmonitor/logger"
	"topn/olxmonitor/services/cache"
	"topn/olxmonitor/services/monitor"
	"topn/olxmonitor/services/publisher"
	"topn/olxmonitor/services/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("database_driver", cfg.DatabaseDriver).
		Dur("cycle_interval", cfg.CycleInterval).
		Int("window_minutes", cfg.WindowMinutes).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	olx := scraper.NewOLXScraper(scraper.OLXConfig{
		Origin:        cfg.MarketplaceOrigin,
		WindowMinutes: cfg.WindowMinutes,
		CacheKey:      "olx_rate_limited",
		BlockTime:     cfg.FetchBlockTime,
	}, services.Cache)

	summarizer := summary.NewGroqSummarizer(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel)

	mon := monitor.New(services.Storage, olx, summarizer, services.Publisher, cfg.TaskDelay)

	// Run cycles until shutdown
	monitorDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting item monitor")
		monitorDone <- runCycles(ctx, mon, cfg.CycleInterval)
	}()

	// Wait for shutdown signal or monitor error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	case err := <-monitorDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Monitor exited with error")
		} else {
			log.Info().Msg("Monitor exited normally")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
}

// runCycles runs monitoring cycles on a fixed interval until ctx ends.
// A failing cycle is logged and the next one starts on schedule.
func runCycles(ctx context.Context, mon *monitor.Monitor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if err := mon.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.LogError("monitor", err, "monitoring cycle failed")
		} else {
			logger.Info("monitoring cycle took %s", time.Since(start))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Services holds all the initialized services
type Services struct {
	Storage   storage.Storage
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Storage != nil {
		s.Storage.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg config.Config) (*Services, error) {
	services := &Services{}

	// Initialize storage
	switch cfg.DatabaseDriver {
	case "postgres":
		store, err := storage.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		services.Storage = store
		logger.Info("Connected to Postgres storage")
	default:
		store, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		services.Storage = store
		logger.Info("Opened SQLite storage at %s", cfg.DatabasePath)
	}

	// Initialize cache service
	services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	// Initialize publisher
	services.Publisher = publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
