package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coursehub/internal/auth"
	"coursehub/internal/calendar"
	"coursehub/internal/circuitbreaker"
	"coursehub/internal/common/logging"
	"coursehub/internal/config"
	"coursehub/internal/crypto"
	"coursehub/internal/fetch"
	"coursehub/internal/handlers"
	"coursehub/internal/importer"
	"coursehub/internal/lms"
	"coursehub/internal/locks"
	"coursehub/internal/redis"
	"coursehub/internal/scheduler"
	"coursehub/internal/server"
	"coursehub/internal/storage"
	"coursehub/internal/storage/postgres"
	"coursehub/internal/storage/sqlite"
	"coursehub/internal/token"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", err)
		os.Exit(1)
	}
	defer store.Close()

	// Redis is optional; without it course caching and cross-instance
	// refresh locks are simply disabled.
	var (
		courseCache lms.Cache
		locker      token.Locker
	)
	if cfg.RedisAddress != "" {
		redisClient, err := redis.NewClient(redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       redisDB(cfg.RedisDB),
		}, logger)
		if err != nil {
			logger.Error("Failed to connect to Redis", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		courseCache = redisClient
		locker = locks.NewManager(redisClient, logger)
	}

	provider, err := token.NewProviderClient(token.ProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
	}, circuitbreaker.New("google-token", circuitbreaker.TokenEndpointConfig, logger), logger)
	if err != nil {
		logger.Error("Failed to build token provider client", err)
		os.Exit(1)
	}

	tokens := token.NewManager(store, provider, locker, token.DefaultManagerConfig(), logger)

	calendarClient, err := calendar.NewClient(calendar.Config{
		BaseURL:          cfg.CalendarBaseURL,
		DefaultUTCOffset: cfg.CalendarDefaultUTCOffset,
		Fetch:            fetch.DefaultConfig(),
	}, tokens, circuitbreaker.New("google-calendar", circuitbreaker.ProviderAPIConfig, logger), logger)
	if err != nil {
		logger.Error("Failed to build calendar client", err)
		os.Exit(1)
	}

	lmsClient := lms.NewClient(lms.Config{
		Fetch: fetch.DefaultConfig(),
	}, store, courseCache, circuitbreaker.New("canvas", circuitbreaker.ProviderAPIConfig, logger), logger)

	authn, err := auth.New(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		logger.Error("Failed to initialize authentication", err)
		os.Exit(1)
	}

	h := handlers.New(store, tokens, calendarClient, lmsClient,
		importer.New(store, logger), authn, logger)

	sweeper := scheduler.NewSweeper(store, tokens, cfg.SweepSchedule,
		cfg.SweepLookaheadDuration(), logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("Failed to start token refresh sweep", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	srv := server.New(h.Router(), cfg.Port, logger)
	srv.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", logging.Field{Key: "signal", Value: sig.String()})
	case err := <-srv.Errors():
		logger.Error("HTTP server failed", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

// buildStorage constructs the configured backend and wraps it so stored
// provider secrets are encrypted at rest.
func buildStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.Storage, error) {
	var storageConfig storage.StorageConfig
	switch cfg.DatabaseType {
	case "postgres":
		pgPort, err := strconv.Atoi(cfg.PostgresPort)
		if err != nil {
			return nil, err
		}
		storageConfig = &postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     pgPort,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		}
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		storageConfig = &sqlite.Config{Path: cfg.DatabasePath}
	}

	store, err := storage.NewStorage(ctx, storageConfig, logger)
	if err != nil {
		return nil, err
	}

	encryptor, err := crypto.NewTokenEncryptor(cfg.TokenEncryptionKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	return storage.NewEncrypting(store, encryptor), nil
}

func redisDB(raw string) int {
	db, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return db
}
