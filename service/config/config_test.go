package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, DefaultHeliusAPIURL, cfg.HeliusAPIURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalHost)
	assert.Equal(t, "soltrace-wallet-scan", cfg.TemporalTaskQueue)
	assert.Equal(t, 5*time.Minute, cfg.DefaultScanInterval)
	assert.Equal(t, 30*time.Second, cfg.MinScanInterval)
	assert.Equal(t, 100, cfg.DefaultScanLimit)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_InvalidScanInterval(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("DEFAULT_SCAN_INTERVAL", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MinIntervalGreaterThanDefault(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("DEFAULT_SCAN_INTERVAL", "10s")
	os.Setenv("MIN_SCAN_INTERVAL", "30s")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "cannot be greater than")
}

func TestLoad_InvalidScanLimit(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("DEFAULT_SCAN_LIMIT", "not-a-number")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_URL", "https://rpc.example.com")
	os.Setenv("HELIUS_API_KEY", "secret-key")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("DEFAULT_SCAN_INTERVAL", "1m")
	os.Setenv("MIN_SCAN_INTERVAL", "15s")
	os.Setenv("DEFAULT_SCAN_LIMIT", "250")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://rpc.example.com", cfg.SolanaRPCURL)
	assert.Equal(t, "secret-key", cfg.HeliusAPIKey)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, time.Minute, cfg.DefaultScanInterval)
	assert.Equal(t, 15*time.Second, cfg.MinScanInterval)
	assert.Equal(t, 250, cfg.DefaultScanLimit)
}

func TestUseEnhancedFeed(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.UseEnhancedFeed())

	cfg.HeliusAPIKey = "secret-key"
	assert.True(t, cfg.UseEnhancedFeed())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		DatabaseURL:         "postgres://localhost/test",
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "soltrace-wallet-scan",
		DefaultScanInterval: 5 * time.Minute,
		MinScanInterval:     30 * time.Second,
		DefaultScanLimit:    100,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := &Config{
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "soltrace-wallet-scan",
		DefaultScanInterval: 5 * time.Minute,
		MinScanInterval:     30 * time.Second,
		DefaultScanLimit:    100,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL is required")
}

func TestValidate_FeedKeyWithoutURL(t *testing.T) {
	cfg := &Config{
		DatabaseURL:         "postgres://localhost/test",
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		HeliusAPIKey:        "secret-key",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "soltrace-wallet-scan",
		DefaultScanInterval: 5 * time.Minute,
		MinScanInterval:     30 * time.Second,
		DefaultScanLimit:    100,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HeliusAPIURL is required")
}

func TestValidate_InvalidIntervals(t *testing.T) {
	cfg := &Config{
		DatabaseURL:         "postgres://localhost/test",
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "soltrace-wallet-scan",
		DefaultScanInterval: 10 * time.Second,
		MinScanInterval:     30 * time.Second,
		DefaultScanLimit:    100,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinScanInterval cannot be greater than DefaultScanInterval")
}

func TestValidate_TooShortInterval(t *testing.T) {
	cfg := &Config{
		DatabaseURL:         "postgres://localhost/test",
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "soltrace-wallet-scan",
		DefaultScanInterval: 500 * time.Millisecond,
		MinScanInterval:     100 * time.Millisecond,
		DefaultScanLimit:    100,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 1 second")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("SOLANA_RPC_URL")
	os.Unsetenv("HELIUS_API_KEY")
	os.Unsetenv("HELIUS_API_URL")
	os.Unsetenv("SERVER_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("NATS_URL")
	os.Unsetenv("TEMPORAL_HOST")
	os.Unsetenv("DEFAULT_SCAN_INTERVAL")
	os.Unsetenv("MIN_SCAN_INTERVAL")
	os.Unsetenv("DEFAULT_SCAN_LIMIT")
}
