package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "https://v3.football.api-sports.io", cfg.API.BaseURL)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Cache.CleanupHorizon)
	assert.Equal(t, time.Minute, cfg.RateLimit.SweepInterval)

	limits := cfg.Limits()
	assert.Equal(t, 10, limits["default"])
	assert.Equal(t, 20, limits["fixtures"])
	assert.Equal(t, 5, limits["leagues"])
	assert.Equal(t, 15, limits["live"])
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livescore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  max_entries: 250
  sweep_interval: 1m
ratelimit:
  limits:
    fixtures: 40
    standings: 3
log:
  level: debug
`), 0o600))

	t.Setenv("LIVESCORE_API_KEY", "secret-key")
	t.Setenv("LIVESCORE_SERVER_ADDRESS", ":9090")
	t.Setenv("LIVESCORE_RATELIMIT_LIMITS_LIVE", "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, "secret-key", cfg.API.Key)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)

	limits := cfg.Limits()
	assert.Equal(t, 40, limits["fixtures"])
	assert.Equal(t, 3, limits["standings"])
	assert.Equal(t, 30, limits["live"])
	assert.Equal(t, 10, limits["default"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Cache.MaxEntries = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.RateLimit.Limits = map[string]int{"live": 0}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.API.BaseURL = " "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIVESCORE_LOG_FORMAT=json\n"), 0o600))

	t.Setenv("LIVESCORE_LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("LIVESCORE_LOG_FORMAT"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}
