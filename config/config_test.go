package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
backend:
  url: https://api.school.example
  breaker:
    consecutive_failures: 3
cache:
  ttl: 30s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://api.school.example", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Confirm.TokenTTL)
	assert.Equal(t, "schoolhealth.actions", cfg.Events.Channel)

	settings := cfg.BreakerSettings()
	assert.Equal(t, uint32(3), settings.ConsecutiveFailures)
	assert.Equal(t, "backend", settings.Name)
	assert.Equal(t, 2*time.Minute, cfg.TokenConfig().TTL)
	assert.Equal(t, 30*time.Second, cfg.SnapshotConfig().TTL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "backend:\n  url: http://from-file\n")
	t.Setenv("SCHOOLHEALTH_BACKEND_URL", "http://from-env:8081")
	t.Setenv("SCHOOLHEALTH_PORT", "7000")
	t.Setenv("SCHOOLHEALTH_CACHE_DRIVER", "redis")
	t.Setenv("SCHOOLHEALTH_EVENTS_ENABLED", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8081", cfg.Backend.URL)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, cfg.Redis.URL, cfg.ToBrokerConfig().URL)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "cache:\n  driver: memcached\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.driver")
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Server.Timezone = "Asia/Ho_Chi_Minh"
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Location().String())
}
