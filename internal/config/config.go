// Package config loads the service configuration from environment variables
// and validates it before anything starts. Identity provider credentials are
// explicit injected values; a missing one is a startup failure, never a
// runtime surprise.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Identity provider (required):
//   - GOOGLE_CLIENT_ID: OAuth2 client ID
//   - GOOGLE_CLIENT_SECRET: OAuth2 client secret
//   - GOOGLE_TOKEN_URL: Token endpoint (default: https://oauth2.googleapis.com/token)
//
// Calendar:
//   - GOOGLE_CALENDAR_BASE_URL: Calendar API root (default: https://www.googleapis.com/calendar/v3)
//   - CALENDAR_DEFAULT_UTC_OFFSET: Offset applied to naive datetimes (default: -08:00)
//
// Database:
//   - DATABASE_TYPE: "sqlite", "postgres" or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite file path (default: ./coursehub.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis (optional; enables course caching and cross-instance refresh locks):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB
//
// Security:
//   - JWT_SECRET: API token signing secret (required, minimum 32 characters)
//   - TOKEN_ENCRYPTION_KEY: Key for encrypting stored secrets (required,
//     minimum 32 characters)
//
// Background refresh:
//   - TOKEN_SWEEP_SCHEDULE: cron spec for the proactive refresh sweep
//     (default: */15 * * * *)
//   - TOKEN_SWEEP_LOOKAHEAD: refresh tokens expiring within this window
//     (default: 20m)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"coursehub/internal/common/utils"
)

// Config holds all configuration values for the service.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Identity provider
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string

	// Calendar
	CalendarBaseURL          string
	CalendarDefaultUTCOffset string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration; empty address disables Redis entirely
	RedisAddress  string
	RedisPassword string
	RedisDB       string

	// Security
	JWTSecret          string
	TokenEncryptionKey string

	// Background refresh sweep
	SweepSchedule  string
	SweepLookahead string
}

// Load creates a Config from environment variables. Call Validate before
// using it.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),

		CalendarBaseURL:          getEnv("GOOGLE_CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
		CalendarDefaultUTCOffset: getEnv("CALENDAR_DEFAULT_UTC_OFFSET", "-08:00"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./coursehub.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "coursehub"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		SweepSchedule:  getEnv("TOKEN_SWEEP_SCHEDULE", "*/15 * * * *"),
		SweepLookahead: getEnv("TOKEN_SWEEP_LOOKAHEAD", "20m"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SweepLookaheadDuration parses the sweep lookahead window. Day ("d") and
// week ("w") units are accepted in addition to the standard ones.
func (c *Config) SweepLookaheadDuration() time.Duration {
	d, err := utils.ParseDuration(c.SweepLookahead)
	if err != nil {
		return 20 * time.Minute
	}
	return d
}

// Validate checks required fields, formats and cross-field dependencies.
func (c *Config) Validate() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID environment variable is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET environment variable is required")
	}
	if c.GoogleTokenURL == "" {
		return fmt.Errorf("GOOGLE_TOKEN_URL must not be empty")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.TokenEncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY environment variable is required")
	}
	if len(c.TokenEncryptionKey) < 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least 32 characters long")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if _, err := time.Parse("-07:00", c.CalendarDefaultUTCOffset); err != nil {
		return fmt.Errorf("CALENDAR_DEFAULT_UTC_OFFSET must look like -08:00 or +02:00")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite', 'postgres' or 'memory'")
	}

	if c.DatabaseType == "postgres" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if _, err := utils.ParseDuration(c.SweepLookahead); err != nil {
		return fmt.Errorf("TOKEN_SWEEP_LOOKAHEAD must be a valid duration (e.g., '20m')")
	}

	return nil
}
