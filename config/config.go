// Package config provides centralized configuration for the
// concurrency core.
//
// Configuration follows a two-tier hierarchy over the built-in defaults:
//  1. An optional YAML override file
//  2. Environment variables (highest priority)
//
// All values have sensible defaults and can be overridden through
// environment variables or a YAML file pointed to by LOCKCORE_CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds all tunables for the lock services and the diagnostics
// server built on top of them.
type Config struct {
	// Concurrency tuning
	// ==================

	// RangeMapShards is the number of shards internal/rangemap splits its
	// concurrent map across.
	// Environment: LOCKCORE_RANGE_MAP_SHARDS
	// Default: 64
	RangeMapShards int `yaml:"range_map_shards"`

	// SpinBackoffMin is the lower spin back-off bound. It is loaded like
	// every other field, but rangelock does not read it:
	// its acquire loop always yields with a plain runtime.Gosched().
	// Environment: LOCKCORE_SPIN_BACKOFF_MIN (milliseconds)
	// Default: 0
	SpinBackoffMin time.Duration `yaml:"spin_backoff_min"`

	// SpinBackoffMax is the upper spin back-off bound. Like
	// SpinBackoffMin, it is not read by rangelock's acquire loop.
	// Environment: LOCKCORE_SPIN_BACKOFF_MAX (milliseconds)
	// Default: 1ms
	SpinBackoffMax time.Duration `yaml:"spin_backoff_max"`

	// FairRangeAcquire makes rangelock hold back new reads on a key while
	// a writer is waiting on that key; the acquire loop still spins with
	// runtime.Gosched().
	// Environment: LOCKCORE_FAIR_RANGE_ACQUIRE
	// Default: false
	FairRangeAcquire bool `yaml:"fair_range_acquire"`

	// Diagnostics
	// ===========

	// StaleLockThreshold is how long a lock can be held before
	// logger.StaleLock fires a warning for it.
	// Environment: LOCKCORE_STALE_LOCK_THRESHOLD (seconds)
	// Default: 30s
	StaleLockThreshold time.Duration `yaml:"stale_lock_threshold"`

	// TraceLocks enables the internal/tracer acquisition log. Off by
	// default since it allocates on every lock/unlock.
	// Environment: LOCKCORE_TRACE_LOCKS
	// Default: false
	TraceLocks bool `yaml:"trace_locks"`

	// TracerBufferSize bounds how many recent acquisition events
	// internal/tracer keeps in memory.
	// Environment: LOCKCORE_TRACER_BUFFER_SIZE
	// Default: 1024
	TracerBufferSize int `yaml:"tracer_buffer_size"`

	// Diagnostics server
	// ==================

	// DiagAddr is the bind address of cmd/lockdiagd's HTTP server.
	// Environment: LOCKCORE_DIAG_ADDR
	// Default: ":9095"
	DiagAddr string `yaml:"diag_addr"`

	// ShutdownTimeout bounds how long the diagnostics server waits for
	// in-flight requests during graceful shutdown.
	// Environment: LOCKCORE_SHUTDOWN_TIMEOUT (seconds)
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// LogLevel is the logger package's minimum emitted level.
	// Environment: LOCKCORE_LOG_LEVEL
	// Default: "info"
	LogLevel string `yaml:"log_level"`
}

// defaults returns a Config populated with hardcoded fallbacks, used
// before any environment or file override is applied.
func defaults() *Config {
	return &Config{
		RangeMapShards:     64,
		SpinBackoffMin:     0,
		SpinBackoffMax:     time.Millisecond,
		FairRangeAcquire:   false,
		StaleLockThreshold: 30 * time.Second,
		TraceLocks:         false,
		TracerBufferSize:   1024,
		DiagAddr:           ":9095",
		ShutdownTimeout:    10 * time.Second,
		LogLevel:           "info",
	}
}

// Load builds a Config from defaults, an optional YAML file named by
// LOCKCORE_CONFIG_FILE, and environment variables, in that priority
// order (env wins).
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("LOCKCORE_CONFIG_FILE"); path != "" {
		if err := applyYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	cfg.RangeMapShards = getEnvInt("LOCKCORE_RANGE_MAP_SHARDS", cfg.RangeMapShards)
	cfg.SpinBackoffMin = getEnvDurationMillis("LOCKCORE_SPIN_BACKOFF_MIN", cfg.SpinBackoffMin)
	cfg.SpinBackoffMax = getEnvDurationMillis("LOCKCORE_SPIN_BACKOFF_MAX", cfg.SpinBackoffMax)
	cfg.FairRangeAcquire = getEnvBool("LOCKCORE_FAIR_RANGE_ACQUIRE", cfg.FairRangeAcquire)
	cfg.StaleLockThreshold = getEnvDurationSeconds("LOCKCORE_STALE_LOCK_THRESHOLD", cfg.StaleLockThreshold)
	cfg.TraceLocks = getEnvBool("LOCKCORE_TRACE_LOCKS", cfg.TraceLocks)
	cfg.TracerBufferSize = getEnvInt("LOCKCORE_TRACER_BUFFER_SIZE", cfg.TracerBufferSize)
	cfg.DiagAddr = getEnv("LOCKCORE_DIAG_ADDR", cfg.DiagAddr)
	cfg.ShutdownTimeout = getEnvDurationSeconds("LOCKCORE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getEnv("LOCKCORE_LOG_LEVEL", cfg.LogLevel)

	if cfg.RangeMapShards <= 0 {
		return nil, fmt.Errorf("config: range_map_shards must be positive, got %d", cfg.RangeMapShards)
	}
	return cfg, nil
}

func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultValue
}

// getEnvDurationSeconds reads an integer-seconds environment variable,
// matching the convention the rest of this codebase's timeouts use.
func getEnvDurationSeconds(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvDurationMillis(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}
