// Package config provides configuration management for ProPaths.
// It loads settings from environment variables with the PROPATHS_ prefix,
// optionally overlaid by a propaths.yaml file, and provides sensible
// defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the ProPaths application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Sync     SyncConfig     `yaml:"sync"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7373)
	Host string `yaml:"host"` // Server host (default: 0.0.0.0)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	// Engine is the storage engine: postgres (primary) or sqlite (fallback).
	Engine string `yaml:"engine"`
	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`
	// SQLitePath is the database file for the sqlite engine.
	SQLitePath string `yaml:"sqlite_path"`
	// CachePath is the directory of legacy cache snapshots for propaths-sync.
	CachePath string `yaml:"cache_path"`
}

// SyncConfig contains sync engine configuration.
type SyncConfig struct {
	Workers   int `yaml:"workers"`    // Worker pool size (default: 4)
	QueueSize int `yaml:"queue_size"` // Batch queue depth (default: 64)
}

// PipelineConfig contains the external discovery pipeline client settings.
type PipelineConfig struct {
	URL            string `yaml:"url"`             // Pipeline base URL (empty disables the client)
	Token          string `yaml:"token"`           // Bearer token for the pipeline
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Request timeout (default: 30)
}

// SecurityConfig contains authentication and rate limit settings.
type SecurityConfig struct {
	APIToken  string  `yaml:"api_token"`  // Token required on write endpoints (empty disables auth)
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per client (default: 20)
	RateBurst int     `yaml:"rate_burst"` // Burst allowance (default: 40)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the PROPATHS_ prefix. When
// PROPATHS_CONFIG_FILE names a YAML file (or ./propaths.yaml exists), the
// file is applied first and the environment still wins.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: 7373,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Engine:     "postgres",
			SQLitePath: "./data/propaths.db",
			CachePath:  "./cache",
		},
		Sync: SyncConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Pipeline: PipelineConfig{
			TimeoutSeconds: 30,
		},
		Security: SecurityConfig{
			RateLimit: 20,
			RateBurst: 40,
		},
	}

	if err := applyFile(cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if cfg.Storage.Engine != "postgres" && cfg.Storage.Engine != "sqlite" {
		return nil, fmt.Errorf("config: unknown storage engine %q", cfg.Storage.Engine)
	}
	if cfg.Storage.Engine == "postgres" && cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("config: PROPATHS_POSTGRES_DSN is required for the postgres engine")
	}
	return cfg, nil
}

func applyFile(cfg *Config) error {
	path := os.Getenv("PROPATHS_CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = "propaths.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PROPATHS_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("PROPATHS_HOST", cfg.Server.Host)

	cfg.Storage.Engine = getEnv("PROPATHS_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.PostgresDSN = getEnv("PROPATHS_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.SQLitePath = getEnv("PROPATHS_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.CachePath = getEnv("PROPATHS_CACHE_PATH", cfg.Storage.CachePath)

	cfg.Sync.Workers = getEnvInt("PROPATHS_SYNC_WORKERS", cfg.Sync.Workers)
	cfg.Sync.QueueSize = getEnvInt("PROPATHS_SYNC_QUEUE_SIZE", cfg.Sync.QueueSize)

	cfg.Pipeline.URL = getEnv("PROPATHS_PIPELINE_URL", cfg.Pipeline.URL)
	cfg.Pipeline.Token = getEnv("PROPATHS_PIPELINE_TOKEN", cfg.Pipeline.Token)
	cfg.Pipeline.TimeoutSeconds = getEnvInt("PROPATHS_PIPELINE_TIMEOUT", cfg.Pipeline.TimeoutSeconds)

	cfg.Security.APIToken = getEnv("PROPATHS_API_TOKEN", cfg.Security.APIToken)
	cfg.Security.RateLimit = getEnvFloat("PROPATHS_RATE_LIMIT", cfg.Security.RateLimit)
	cfg.Security.RateBurst = getEnvInt("PROPATHS_RATE_BURST", cfg.Security.RateBurst)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
