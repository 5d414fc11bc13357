// Package config loads service configuration from environment variables,
// with an optional .env file taking effect before the scan.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults documented in the service README.
const (
	DefaultCacheTTL              = 60 * time.Second
	DefaultRequestTimeout        = 10 * time.Second
	DefaultRetryAttempts         = 3
	DefaultMaxDailyInvestment    = 2000.0
	DefaultPositionCheckInterval = 60 * time.Second
	DefaultScanInterval          = 60 * time.Second
	DefaultAPIAddr               = ":8080"
	DefaultMetricsAddr           = ":9090"

	// USDC mint on mainnet, the funding asset investments are denominated in.
	DefaultFundingMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// ErrNoEndpoints is returned when no RPC_* endpoint variables are configured.
var ErrNoEndpoints = errors.New("no RPC endpoints configured: set at least one RPC_* variable")

// rpcReservedKeys are RPC_-prefixed variables that are settings, not endpoints.
var rpcReservedKeys = map[string]struct{}{
	"RPC_CACHE_TTL":      {},
	"RPC_TIMEOUT":        {},
	"RPC_RETRY_ATTEMPTS": {},
}

// Config holds all service configuration.
type Config struct {
	// RPC endpoint selection
	Endpoints      []string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	RetryAttempts  int

	// Trading
	MaxDailyInvestment    float64
	PositionCheckInterval time.Duration
	ScanInterval          time.Duration
	FundingMint           string
	WalletPubkey          string
	SimulationMode        bool

	// Storage
	PostgresDSN   string
	ClickhouseDSN string

	// Transport
	WSEndpoint  string
	APIAddr     string
	MetricsAddr string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; existing variables are not overridden.
func Load() (*Config, error) {
	// Missing .env is fine, system env vars are authoritative anyway.
	_ = godotenv.Load()

	cfg := &Config{
		CacheTTL:              DefaultCacheTTL,
		RequestTimeout:        DefaultRequestTimeout,
		RetryAttempts:         DefaultRetryAttempts,
		MaxDailyInvestment:    DefaultMaxDailyInvestment,
		PositionCheckInterval: DefaultPositionCheckInterval,
		ScanInterval:          DefaultScanInterval,
		FundingMint:           DefaultFundingMint,
		APIAddr:               DefaultAPIAddr,
		MetricsAddr:           DefaultMetricsAddr,
	}

	cfg.Endpoints = endpointsFromEnv(os.Environ())
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	var err error
	if cfg.CacheTTL, err = secondsVar("RPC_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = secondsVar("RPC_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if v := os.Getenv("RPC_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RPC_RETRY_ATTEMPTS %q", v)
		}
		cfg.RetryAttempts = n
	}
	if v := os.Getenv("MAX_DAILY_INVESTMENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid MAX_DAILY_INVESTMENT %q", v)
		}
		cfg.MaxDailyInvestment = f
	}
	if cfg.PositionCheckInterval, err = secondsVar("POSITION_CHECK_INTERVAL", cfg.PositionCheckInterval); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = secondsVar("SCAN_INTERVAL", cfg.ScanInterval); err != nil {
		return nil, err
	}

	if v := os.Getenv("FUNDING_MINT"); v != "" {
		cfg.FundingMint = v
	}
	cfg.WalletPubkey = os.Getenv("WALLET_PUBKEY")
	cfg.SimulationMode = strings.EqualFold(os.Getenv("SIMULATION_MODE"), "true")

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	cfg.ClickhouseDSN = os.Getenv("CLICKHOUSE_DSN")
	cfg.WSEndpoint = os.Getenv("SOLANA_WS_ENDPOINT")

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	return cfg, nil
}

// endpointsFromEnv extracts endpoint URLs from RPC_-prefixed variables,
// excluding reserved setting keys. Order is stable (sorted by variable name).
func endpointsFromEnv(environ []string) []string {
	var keys []string
	values := make(map[string]string)

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if !strings.HasPrefix(name, "RPC_") {
			continue
		}
		if _, reserved := rpcReservedKeys[name]; reserved {
			continue
		}
		keys = append(keys, name)
		values[name] = value
	}

	sort.Strings(keys)

	endpoints := make([]string, 0, len(keys))
	for _, k := range keys {
		endpoints = append(endpoints, values[k])
	}
	return endpoints
}

// secondsVar reads an integer-seconds environment variable.
func secondsVar(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want positive integer seconds", name, v)
	}
	return time.Duration(n) * time.Second, nil
}
