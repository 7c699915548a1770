package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Platform  PlatformConfig
	Events    EventsConfig
	Sync      SyncConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// PlatformConfig holds commerce platform client settings
type PlatformConfig struct {
	CallTimeout time.Duration
	SessionTTL  time.Duration
}

// EventsConfig holds event bus settings. An empty URL disables the consumer.
type EventsConfig struct {
	AMQPURL string
}

// SyncConfig holds engine tuning
type SyncConfig struct {
	Parallelism int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "bomsync"),
		},
		Platform: PlatformConfig{
			CallTimeout: getDuration("PLATFORM_CALL_TIMEOUT", 30*time.Second),
			SessionTTL:  getDuration("PLATFORM_SESSION_TTL", 15*time.Minute),
		},
		Events: EventsConfig{
			AMQPURL: os.Getenv("AMQP_URL"),
		},
		Sync: SyncConfig{
			Parallelism: getInt("SYNC_PARALLELISM", 4),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
