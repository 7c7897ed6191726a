// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} expansion
//  2. Environment variables (fallback), after loading an optional .env file
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	window := cfg.Detection.ExactWindowDays
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Detection     DetectionConfig     `yaml:"detection"`
	Index         IndexConfig         `yaml:"index"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port               int      `yaml:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerSecond float64  `yaml:"rate_limit_per_second"`
	RateBurst          int      `yaml:"rate_burst"`
}

// SchedulerConfig controls periodic background passes
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// DetectionConfig holds the matching windows used by the passes
type DetectionConfig struct {
	CardLookbackDays  int           `yaml:"card_lookback_days"`
	CardLookaheadDays int           `yaml:"card_lookahead_days"`
	ExactWindowDays   int           `yaml:"exact_window_days"`
	FuzzyTolerance    float64       `yaml:"fuzzy_tolerance"`
	DedupWindowDays   int           `yaml:"dedup_window_days"`
	AlertCooldown     time.Duration `yaml:"alert_cooldown"`
}

// IndexConfig holds search index settings
type IndexConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a configuration with every field set.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{DatabasePath: "ledgerwatch.db"},
		Server: ServerConfig{
			Port:               8085,
			AllowedOrigins:     []string{"http://localhost:3000"},
			RateLimitPerSecond: 20,
			RateBurst:          40,
		},
		Scheduler: SchedulerConfig{Enabled: false, Interval: time.Hour},
		Detection: DetectionConfig{
			CardLookbackDays:  5,
			CardLookaheadDays: 2,
			ExactWindowDays:   3,
			FuzzyTolerance:    0.05,
			DedupWindowDays:   3,
			AlertCooldown:     24 * time.Hour,
		},
		Index: IndexConfig{TTL: 10 * time.Minute},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// Load reads and parses the config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGERWATCH_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Defaults()
	cfg.Storage.DatabasePath = getEnv("LEDGERWATCH_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Server.Port = getEnvInt("LEDGERWATCH_PORT", cfg.Server.Port)
	cfg.Server.RateLimitPerSecond = getEnvFloat("LEDGERWATCH_RATE_LIMIT", cfg.Server.RateLimitPerSecond)
	cfg.Server.RateBurst = getEnvInt("LEDGERWATCH_RATE_BURST", cfg.Server.RateBurst)
	if origin := os.Getenv("LEDGERWATCH_ALLOWED_ORIGIN"); origin != "" {
		cfg.Server.AllowedOrigins = []string{origin}
	}
	cfg.Scheduler.Enabled = getEnvBool("LEDGERWATCH_SCHEDULER", cfg.Scheduler.Enabled)
	cfg.Scheduler.Interval = getEnvDuration("LEDGERWATCH_SCHEDULER_INTERVAL", cfg.Scheduler.Interval)
	cfg.Detection.ExactWindowDays = getEnvInt("LEDGERWATCH_EXACT_WINDOW_DAYS", cfg.Detection.ExactWindowDays)
	cfg.Detection.DedupWindowDays = getEnvInt("LEDGERWATCH_DEDUP_WINDOW_DAYS", cfg.Detection.DedupWindowDays)
	cfg.Index.TTL = getEnvDuration("LEDGERWATCH_INDEX_TTL", cfg.Index.TTL)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables.
// A .env file in the working directory is loaded first when present.
func LoadOrEnv_WithPath(path string) *Config {
	_ = godotenv.Load()
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate rejects settings no pass can run with.
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	d := c.Detection
	for name, v := range map[string]int{
		"card_lookback_days":  d.CardLookbackDays,
		"card_lookahead_days": d.CardLookaheadDays,
		"exact_window_days":   d.ExactWindowDays,
		"dedup_window_days":   d.DedupWindowDays,
	} {
		if v <= 0 {
			return fmt.Errorf("detection.%s must be positive, got %d", name, v)
		}
	}
	if d.FuzzyTolerance < 0 || d.FuzzyTolerance >= 1 {
		return fmt.Errorf("detection.fuzzy_tolerance must be in [0, 1), got %v", d.FuzzyTolerance)
	}
	if d.AlertCooldown <= 0 {
		return fmt.Errorf("detection.alert_cooldown must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive when the scheduler is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(val); err == nil {
			return result
		}
	}
	return fallback
}
