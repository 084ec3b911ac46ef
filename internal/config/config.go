// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Database
	DatabaseURL string
	AutoMigrate bool

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int

	// Redis (leaderboard cache & sweep lock)
	RedisURL string

	// Background workers
	SweepInterval     time.Duration
	SweepBatchSize    int
	IntegrityInterval time.Duration

	LeaderboardCacheTTL time.Duration

	// Optional YAML rules file (zones, department routing, classifier keywords)
	RulesFile string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 60),

		RedisURL: getEnv("REDIS_URL", ""),

		SweepInterval:     time.Duration(getEnvInt("SLA_SWEEP_INTERVAL", 5)) * time.Minute,
		SweepBatchSize:    getEnvInt("SLA_SWEEP_BATCH", 200),
		IntegrityInterval: time.Duration(getEnvInt("INTEGRITY_INTERVAL", 15)) * time.Minute,

		LeaderboardCacheTTL: time.Duration(getEnvInt("LEADERBOARD_CACHE_TTL", 60)) * time.Second,

		RulesFile: getEnv("RULES_FILE", ""),
	}

	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SLA_SWEEP_INTERVAL must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("SLA_SWEEP_BATCH must be positive")
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
