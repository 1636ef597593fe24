// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Dice game settings
	DicePlatformFeeBps int64         // platform cut of the prize pool, in basis points
	DiceExpiry         time.Duration // how long a game may wait for players before refunds open

	// Arbitrated bet settings
	BetPlatformFeeBps int64
	ArbiterFeeBps     int64
	BetExpiry         time.Duration // how long a bet may wait for deposits before cancellation
	BetMinDecision    time.Duration // arbiter must wait this long after activation before ruling

	// Background sweeper
	SweepInterval time.Duration

	// Security
	RateLimitRPM int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (empty = tracing disabled)
}

// Defaults match the fee schedules and expiry windows of the two wager types.
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultDicePlatformFeeBps = 250  // 2.5%
	DefaultBetPlatformFeeBps  = 2000 // 20%
	DefaultArbiterFeeBps      = 200  // 2%
	DefaultDiceExpiry         = time.Hour
	DefaultBetExpiry          = 24 * time.Hour
	DefaultBetMinDecision     = 10 * time.Minute
	DefaultSweepInterval      = 30 * time.Second
	DefaultRateLimit          = 120
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DicePlatformFeeBps: getEnvInt64("DICE_PLATFORM_FEE_BPS", DefaultDicePlatformFeeBps),
		DiceExpiry:         getEnvDuration("DICE_EXPIRY", DefaultDiceExpiry),
		BetPlatformFeeBps:  getEnvInt64("BET_PLATFORM_FEE_BPS", DefaultBetPlatformFeeBps),
		ArbiterFeeBps:      getEnvInt64("ARBITER_FEE_BPS", DefaultArbiterFeeBps),
		BetExpiry:          getEnvDuration("BET_EXPIRY", DefaultBetExpiry),
		BetMinDecision:     getEnvDuration("BET_MIN_DECISION", DefaultBetMinDecision),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid ENV %q (must be development, staging, or production)", c.Env)
	}

	if err := validateBps("DICE_PLATFORM_FEE_BPS", c.DicePlatformFeeBps); err != nil {
		return err
	}
	if err := validateBps("BET_PLATFORM_FEE_BPS", c.BetPlatformFeeBps); err != nil {
		return err
	}
	if err := validateBps("ARBITER_FEE_BPS", c.ArbiterFeeBps); err != nil {
		return err
	}
	if c.BetPlatformFeeBps+c.ArbiterFeeBps >= 10000 {
		return fmt.Errorf("combined bet fees %d bps leave nothing to distribute", c.BetPlatformFeeBps+c.ArbiterFeeBps)
	}

	if c.DiceExpiry <= 0 {
		return fmt.Errorf("DICE_EXPIRY must be positive")
	}
	if c.BetExpiry <= 0 {
		return fmt.Errorf("BET_EXPIRY must be positive")
	}
	if c.BetMinDecision < 0 {
		return fmt.Errorf("BET_MIN_DECISION must not be negative")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func validateBps(name string, bps int64) error {
	if bps < 0 || bps >= 10000 {
		return fmt.Errorf("%s must be in [0, 10000), got %d", name, bps)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
