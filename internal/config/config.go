// Package config loads server settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Zero values are filled with defaults
// by Load.
type Config struct {
	Addr       string `yaml:"addr"`
	LogLevel   string `yaml:"log_level"`
	AdminToken string `yaml:"admin_token"`

	ConfirmTimeoutSec int `yaml:"confirm_timeout_sec"`
	MoveTimeoutSec    int `yaml:"move_timeout_sec"`
	ProbeIntervalSec  int `yaml:"probe_interval_sec"`

	SweeperEnabled bool `yaml:"sweeper_enabled"`

	NATS struct {
		URL           string `yaml:"url"`
		StateBucket   string `yaml:"state_bucket"`
		VersionBucket string `yaml:"version_bucket"`
		VersionTTLSec int    `yaml:"version_ttl_sec"`
	} `yaml:"nats"`

	// PostgresDSN enables the move journal when set.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads path (skipped when empty or missing) and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Addr = getEnv("CHESS_ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("CHESS_LOG_LEVEL", cfg.LogLevel)
	cfg.AdminToken = getEnv("CHESS_ADMIN_TOKEN", cfg.AdminToken)
	cfg.ConfirmTimeoutSec = getEnvAsInt("CHESS_CONFIRM_TIMEOUT_SEC", cfg.ConfirmTimeoutSec)
	cfg.MoveTimeoutSec = getEnvAsInt("CHESS_MOVE_TIMEOUT_SEC", cfg.MoveTimeoutSec)
	cfg.ProbeIntervalSec = getEnvAsInt("CHESS_PROBE_INTERVAL_SEC", cfg.ProbeIntervalSec)
	cfg.NATS.URL = getEnv("CHESS_NATS_URL", cfg.NATS.URL)
	cfg.NATS.StateBucket = getEnv("CHESS_NATS_STATE_BUCKET", cfg.NATS.StateBucket)
	cfg.NATS.VersionBucket = getEnv("CHESS_NATS_VERSION_BUCKET", cfg.NATS.VersionBucket)
	cfg.NATS.VersionTTLSec = getEnvAsInt("CHESS_NATS_VERSION_TTL_SEC", cfg.NATS.VersionTTLSec)
	cfg.PostgresDSN = getEnv("CHESS_POSTGRES_DSN", cfg.PostgresDSN)
	if v := os.Getenv("CHESS_SWEEPER_ENABLED"); v != "" {
		cfg.SweeperEnabled = v == "true" || v == "1"
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		Addr:              ":8080",
		LogLevel:          "info",
		ConfirmTimeoutSec: 30,
		MoveTimeoutSec:    60,
		ProbeIntervalSec:  2,
		SweeperEnabled:    true,
	}
	cfg.NATS.StateBucket = "crowdchess-state"
	cfg.NATS.VersionBucket = "crowdchess-versions"
	cfg.NATS.VersionTTLSec = 15
	return cfg
}

// ConfirmTimeout returns the confirmation window budget.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

// MoveTimeout returns the move window budget.
func (c *Config) MoveTimeout() time.Duration {
	return time.Duration(c.MoveTimeoutSec) * time.Second
}

// ProbeInterval returns the remote-version probe cadence.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

// VersionTTL returns the probe key expiry.
func (c *Config) VersionTTL() time.Duration {
	return time.Duration(c.NATS.VersionTTLSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
