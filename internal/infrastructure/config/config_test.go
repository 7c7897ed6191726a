package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "custom.db"
server:
  port: 9000
scheduler:
  enabled: true
  interval: 15m
detection:
  exact_window_days: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 4, cfg.Detection.ExactWindowDays)
	// untouched fields keep defaults
	assert.Equal(t, 5, cfg.Detection.CardLookbackDays)
	assert.Equal(t, 24*time.Hour, cfg.Detection.AlertCooldown)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "storage: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEDGERWATCH_DB_PATH", "test.db")
	t.Setenv("LEDGERWATCH_PORT", "9999")
	t.Setenv("LEDGERWATCH_SCHEDULER", "true")
	t.Setenv("LEDGERWATCH_SCHEDULER_INTERVAL", "30m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("LEDGERWATCH_DB_PATH", "")
	t.Setenv("LEDGERWATCH_PORT", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, "ledgerwatch.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 8085, cfg.Server.Port)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	t.Setenv("LEDGERWATCH_DB_PATH", "fallback.db")

	cfg := LoadOrEnv_WithPath("nonexistent.yaml")
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "expanded.db")
	path := writeConfig(t, `
storage:
  database_path: "${TEST_DB_PATH}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Storage.DatabasePath = "" }},
		{"zero exact window", func(c *Config) { c.Detection.ExactWindowDays = 0 }},
		{"negative lookback", func(c *Config) { c.Detection.CardLookbackDays = -1 }},
		{"tolerance too large", func(c *Config) { c.Detection.FuzzyTolerance = 1.5 }},
		{"zero cooldown", func(c *Config) { c.Detection.AlertCooldown = 0 }},
		{"scheduler without interval", func(c *Config) { c.Scheduler.Enabled = true; c.Scheduler.Interval = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Defaults().Validate())
}
