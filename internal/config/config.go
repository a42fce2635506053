// Package config holds the daemon configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration of zkmemd.
type Config struct {
	// Remote memory service
	RemoteBaseURL   string `json:"remoteBaseUrl"`
	RemoteAPIKey    string `json:"remoteApiKey"`
	RemoteTimeoutMs int    `json:"remoteTimeoutMs"`

	// Retry-queue flush cadence
	FlushIntervalMs int `json:"flushIntervalMs"`

	// Durable store DSN; ":memory:" keeps everything in-process
	DBPath string `json:"dbPath"`

	// Logging
	LogLevel string `json:"logLevel"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		RemoteBaseURL:   "http://localhost:8230",
		RemoteTimeoutMs: 5000,
		FlushIntervalMs: 10000,
		DBPath:          "notes.db",
		LogLevel:        "info",
	}
}

// FromEnv returns the default configuration with ZKMEM_* environment
// overrides applied.
func FromEnv() *Config {
	cfg := Default()
	if v := os.Getenv("ZKMEM_REMOTE_BASE_URL"); v != "" {
		cfg.RemoteBaseURL = v
	}
	if v := os.Getenv("ZKMEM_REMOTE_API_KEY"); v != "" {
		cfg.RemoteAPIKey = v
	}
	if v := envInt("ZKMEM_REMOTE_TIMEOUT_MS"); v > 0 {
		cfg.RemoteTimeoutMs = v
	}
	if v := envInt("ZKMEM_FLUSH_INTERVAL_MS"); v > 0 {
		cfg.FlushIntervalMs = v
	}
	if v := os.Getenv("ZKMEM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ZKMEM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("config: remote base URL is required")
	}
	if c.RemoteTimeoutMs <= 0 {
		return fmt.Errorf("config: remote timeout must be positive, got %d", c.RemoteTimeoutMs)
	}
	if c.FlushIntervalMs <= 0 {
		return fmt.Errorf("config: flush interval must be positive, got %d", c.FlushIntervalMs)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: db path is required")
	}
	return nil
}

// RemoteTimeout returns the remote call bound as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMs) * time.Millisecond
}

// FlushInterval returns the flush cadence as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
