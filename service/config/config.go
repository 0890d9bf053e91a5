package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Wallet providers a server can run with.
const (
	ProviderSimulated = "simulated"
	ProviderSolana    = "solana"
	ProviderTemporal  = "temporal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Wallet provider configuration
	Provider     string
	Network      string
	HistoryLimit int

	// Solana configuration, required by the solana and temporal providers
	SolanaRPCURLs       []string
	WalletPrivateKey    string
	ConfirmPollInterval time.Duration
	ConfirmTimeout      time.Duration

	// Simulated provider configuration
	SimulatedConnectDelay  time.Duration
	SimulatedTransferDelay time.Duration
	SimulatedFailureRate   float64

	// Database configuration. Empty disables the journal.
	DatabaseURL string

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Provider configuration
	cfg.Provider = strings.ToLower(getEnvOrDefault("PROVIDER", ProviderSimulated))
	cfg.Network = os.Getenv("NETWORK")
	if cfg.Network == "" {
		if cfg.Provider == ProviderSimulated {
			cfg.Network = "testnet"
		} else {
			cfg.Network = "devnet"
		}
	}

	historyLimit, err := parseInt("HISTORY_LIMIT", 20)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HistoryLimit = historyLimit
	}

	// Solana configuration
	cfg.SolanaRPCURLs = parseList(os.Getenv("SOLANA_RPC_URLS"))
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "90s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	// Simulated provider configuration
	connectDelay, err := parseDuration("SIMULATED_CONNECT_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SimulatedConnectDelay = connectDelay
	}

	transferDelay, err := parseDuration("SIMULATED_TRANSFER_DELAY", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SimulatedTransferDelay = transferDelay
	}

	failureRate, err := parseFloat("SIMULATED_FAILURE_RATE", 0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SimulatedFailureRate = failureRate
	}

	// Optional sinks
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "genesis-transfers")

	if len(errs) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Return all validation errors
	return nil, fmt.Errorf("configuration validation failed: %v", errs)
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

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderSimulated:
		if c.SimulatedFailureRate < 0 || c.SimulatedFailureRate > 1 {
			errs = append(errs, fmt.Errorf("SIMULATED_FAILURE_RATE must be between 0 and 1"))
		}
		if c.SimulatedConnectDelay < 0 || c.SimulatedTransferDelay < 0 {
			errs = append(errs, fmt.Errorf("simulated delays cannot be negative"))
		}
	case ProviderSolana, ProviderTemporal:
		if len(c.SolanaRPCURLs) == 0 {
			errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS is required for the %s provider", c.Provider))
		}
		if c.WalletPrivateKey == "" {
			errs = append(errs, fmt.Errorf("WALLET_PRIVATE_KEY is required for the %s provider", c.Provider))
		}
		if c.ConfirmPollInterval <= 0 {
			errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL must be positive"))
		}
		if c.ConfirmTimeout < c.ConfirmPollInterval {
			errs = append(errs, fmt.Errorf("CONFIRM_TIMEOUT (%v) cannot be less than CONFIRM_POLL_INTERVAL (%v)",
				c.ConfirmTimeout, c.ConfirmPollInterval))
		}
	default:
		errs = append(errs, fmt.Errorf("PROVIDER must be one of %s, %s, %s (got %q)",
			ProviderSimulated, ProviderSolana, ProviderTemporal, c.Provider))
	}

	if c.Provider == ProviderTemporal {
		if c.TemporalHost == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_HOST is required"))
		}
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required"))
		}
	}

	if c.Network == "" {
		errs = append(errs, fmt.Errorf("NETWORK is required"))
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

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma separated value, dropping empty entries.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
