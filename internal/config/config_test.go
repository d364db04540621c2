package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, 10, cfg.Progression.TaskAward)
	assert.Equal(t, 50, cfg.Progression.WorkoutLogAward)
	assert.Equal(t, 400.0, cfg.Progression.DefaultBurnCalories)
	assert.Equal(t, 3, cfg.Generator.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Generator.BaseDelay)
	assert.Equal(t, 64, cfg.Tracker.WriteQueueSize)
	assert.Equal(t, 30*time.Minute, cfg.Tracker.IdleTimeout)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  address: ":9090"
jwt:
  secret: from-file
  expiration: 30m
tracker:
  timezone: Europe/Berlin
  idle_timeout: 5m
progression:
  task_award: 15
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("S3_ENABLED", "true")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, 15, cfg.Progression.TaskAward)
	assert.Equal(t, 5*time.Minute, cfg.Tracker.IdleTimeout)

	loc, err := cfg.Tracker.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfigBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
