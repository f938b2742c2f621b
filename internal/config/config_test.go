package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.State.HistoryDepth)
	assert.Equal(t, 7*24*time.Hour, cfg.Export.ArtifactRetention)
	assert.Equal(t, 30*24*time.Hour, cfg.Export.JobRetention)
	assert.Equal(t, 2*time.Minute, cfg.Export.RenderTimeout)
	assert.Equal(t, "@every 1s", cfg.Worker.Interval)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := []byte(`database:
  driver: postgres
  dsn: host=localhost user=mediakit
state:
  history_depth: 20
  guest_ttl: 2h
export:
  converter_url: http://converter:3000
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mediakit.yml"), yml, 0o644))

	t.Setenv("MEDIAKIT_STATE_HISTORY_DEPTH", "30")
	t.Setenv("MEDIAKIT_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.State.HistoryDepth)
	assert.Equal(t, 2*time.Hour, cfg.State.GuestTTL)
	assert.Equal(t, "http://converter:3000", cfg.Export.ConverterURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "mediakit.db", cfg.Database.DSN)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, ok: true},
		{name: "driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "dsn", mutate: func(c *Config) { c.Database.DSN = "" }},
		{name: "history depth", mutate: func(c *Config) { c.State.HistoryDepth = 0 }},
		{name: "cache size", mutate: func(c *Config) { c.State.CacheSize = -1 }},
		{name: "batch", mutate: func(c *Config) { c.Worker.Batch = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestGetDb(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")

	db, err := GetDb(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.NoError(t, sqlDB.Close())
}
