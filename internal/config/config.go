// Package config loads turnkey's runtime configuration from flags,
// environment variables, and an optional .env file, validating ranges
// the way the teacher's internal/telemetry.validateConfig defaults and
// bounds-checks its own Config.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	minMaxConnections = 1
	maxMaxConnections = 4096
	minDeadlineMillis = 100
	maxDeadlineMillis = 60_000
	minRetries        = 0
	maxRetries        = 10
)

// Config is turnkey-server's runtime configuration.
type Config struct {
	ListenAddr         string
	OpsAddr            string
	MaxConnections     int
	ConnectionDeadline time.Duration
	ValidatorRetries   int
	RetryDelay         time.Duration
	LogLevel           string
	LogFormat          string
	MDNSInstance       string
	MDNSEnabled        bool
}

// defaults returns the baseline Config before flags/env are applied.
func defaults() Config {
	return Config{
		ListenAddr:         ":7000",
		OpsAddr:            ":8080",
		MaxConnections:     64,
		ConnectionDeadline: 3000 * time.Millisecond,
		ValidatorRetries:   2,
		RetryDelay:         500 * time.Millisecond,
		LogLevel:           "info",
		LogFormat:          "text",
		MDNSInstance:       "turnkey validator",
		MDNSEnabled:        true,
	}
}

// Load reads an optional .env file, then flags and environment
// variables (flags take precedence over env, env over defaults), and
// validates the result.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // no .env file present is not an error
	}

	cfg := defaults()
	applyEnv(&cfg)

	fs := flag.NewFlagSet("turnkey-server", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Henry protocol TCP listen address")
	fs.StringVar(&cfg.OpsAddr, "ops-addr", cfg.OpsAddr, "ops HTTP listen address")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum concurrent device connections")
	fs.DurationVar(&cfg.ConnectionDeadline, "connection-deadline", cfg.ConnectionDeadline, "per-read/write connection deadline")
	fs.IntVar(&cfg.ValidatorRetries, "validator-retries", cfg.ValidatorRetries, "online validator max retries")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "online validator inter-attempt delay")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.StringVar(&cfg.MDNSInstance, "mdns-instance", cfg.MDNSInstance, "mDNS instance name to advertise")
	fs.BoolVar(&cfg.MDNSEnabled, "mdns-enabled", cfg.MDNSEnabled, "advertise this server over mDNS")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return validate(cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TURNKEY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TURNKEY_OPS_ADDR"); v != "" {
		cfg.OpsAddr = v
	}
	if v := os.Getenv("TURNKEY_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnections = n
		}
	}
	if v := os.Getenv("TURNKEY_CONNECTION_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConnectionDeadline = d
		}
	}
	if v := os.Getenv("TURNKEY_VALIDATOR_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ValidatorRetries = n
		}
	}
	if v := os.Getenv("TURNKEY_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryDelay = d
		}
	}
	if v := os.Getenv("TURNKEY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TURNKEY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TURNKEY_MDNS_INSTANCE"); v != "" {
		cfg.MDNSInstance = v
	}
}

// validate rejects out-of-range values rather than silently clamping
// them, since a misconfigured deployment should fail fast at startup.
func validate(cfg Config) (Config, error) {
	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("config: listen address required")
	}
	if cfg.MaxConnections < minMaxConnections || cfg.MaxConnections > maxMaxConnections {
		return Config{}, fmt.Errorf("config: max-connections %d out of range [%d,%d]", cfg.MaxConnections, minMaxConnections, maxMaxConnections)
	}
	deadlineMillis := cfg.ConnectionDeadline.Milliseconds()
	if deadlineMillis < minDeadlineMillis || deadlineMillis > maxDeadlineMillis {
		return Config{}, fmt.Errorf("config: connection-deadline %s out of range [%dms,%dms]", cfg.ConnectionDeadline, minDeadlineMillis, maxDeadlineMillis)
	}
	if cfg.ValidatorRetries < minRetries || cfg.ValidatorRetries > maxRetries {
		return Config{}, fmt.Errorf("config: validator-retries %d out of range [%d,%d]", cfg.ValidatorRetries, minRetries, maxRetries)
	}
	if cfg.RetryDelay <= 0 {
		return Config{}, fmt.Errorf("config: retry-delay must be positive")
	}
	return cfg, nil
}
