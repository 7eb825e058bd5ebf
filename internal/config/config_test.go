package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "goatfarm.db", cfg.Store.Path)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "goatfarm_forecast", cfg.History.Schema)
	assert.Empty(t, cfg.History.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 150, cfg.Breeding.GestationDays)
	assert.Equal(t, 7, cfg.Breeding.DueSoonDays)
	assert.Equal(t, 30, cfg.Breeding.HorizonDays)
	assert.Equal(t, "@daily", cfg.Digest.Schedule)
	assert.False(t, cfg.Digest.Enabled)
	assert.Equal(t, DefaultFeeds, cfg.News.Feeds)
	assert.Equal(t, 5, cfg.News.PerFeed)
	assert.Equal(t, 200, cfg.News.SummaryChars)
	assert.Equal(t, "fs", cfg.Export.Sink)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  path: farm.db
breeding:
  gestation_days: 152
digest:
  enabled: true
  owners: [farm-1, farm-2]
news:
  per_feed: 3
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "farm.db", cfg.Store.Path)
	assert.Equal(t, 152, cfg.Breeding.GestationDays)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, []string{"farm-1", "farm-2"}, cfg.Digest.Owners)
	assert.Equal(t, 3, cfg.News.PerFeed)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 7, cfg.Breeding.DueSoonDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GOATFARM_STORE_DRIVER", "postgres")
	t.Setenv("GOATFARM_LOG_LEVEL", "warn")
	t.Setenv("GOATFARM_BREEDING_HORIZON_DAYS", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 45, cfg.Breeding.HorizonDays)
}

func TestLoadHistoryFallsBackToDatabaseURL(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOATFARM_HISTORY_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/goats")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/goats", cfg.History.DatabaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

func TestInitLoggerDefaultsAndName(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Format: "text"}))
	logger := zap.L()
	assert.Equal(t, "goatfarm", logger.Name())
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn"}))
	assert.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
}
