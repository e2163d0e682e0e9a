package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultHeliusAPIURL is the enhanced feed API root.
const DefaultHeliusAPIURL = "https://api.helius.xyz"

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration. HeliusAPIKey is optional: when present, scans
	// use the enhanced feed; when empty, they fall back to raw RPC.
	SolanaRPCURL string
	HeliusAPIKey string
	HeliusAPIURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Scan configuration
	DefaultScanInterval time.Duration
	MinScanInterval     time.Duration
	DefaultScanLimit    int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	cfg.HeliusAPIURL = getEnvOrDefault("HELIUS_API_URL", DefaultHeliusAPIURL)

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "soltrace-wallet-scan")

	// Scan configuration
	defaultInterval, err := parseDuration("DEFAULT_SCAN_INTERVAL", "5m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultScanInterval = defaultInterval
	}

	minInterval, err := parseDuration("MIN_SCAN_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinScanInterval = minInterval
	}

	scanLimit, err := parseInt("DEFAULT_SCAN_LIMIT", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultScanLimit = scanLimit
	}

	// Validate intervals
	if cfg.MinScanInterval > cfg.DefaultScanInterval {
		errs = append(errs, fmt.Errorf("MIN_SCAN_INTERVAL (%v) cannot be greater than DEFAULT_SCAN_INTERVAL (%v)",
			cfg.MinScanInterval, cfg.DefaultScanInterval))
	}

	if cfg.DefaultScanLimit <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_SCAN_LIMIT must be positive, got %d", cfg.DefaultScanLimit))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// UseEnhancedFeed reports whether scans should use the enhanced feed.
func (c *Config) UseEnhancedFeed() bool {
	return c.HeliusAPIKey != ""
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.HeliusAPIKey != "" && c.HeliusAPIURL == "" {
		errs = append(errs, fmt.Errorf("HeliusAPIURL is required when HeliusAPIKey is set"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MinScanInterval > c.DefaultScanInterval {
		errs = append(errs, fmt.Errorf("MinScanInterval cannot be greater than DefaultScanInterval"))
	}

	if c.DefaultScanInterval < time.Second {
		errs = append(errs, fmt.Errorf("DefaultScanInterval must be at least 1 second"))
	}

	if c.DefaultScanLimit <= 0 {
		errs = append(errs, fmt.Errorf("DefaultScanLimit must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
