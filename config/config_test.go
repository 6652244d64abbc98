package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var e *errors.Error
	require.True(t, errors.As(err, &e), "expected *errors.Error, got %T", err)
	return e.ValidationMap()
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := LoadFromEnv("", map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, "json/v1", cfg.Encoding)
	assert.Equal(t, "villages", cfg.Paths.VillagesDir)
	assert.Equal(t, "villages/quest", cfg.Paths.QuestsDir)
	assert.Equal(t, "saves", cfg.Paths.SavesDir)
	assert.Equal(t, "villages/initial.json", cfg.Paths.SeedFile)
	assert.Equal(t, []string{"100000030", "100000031"}, cfg.ReservedNPCIDs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "village:", cfg.Redis.KeyPrefix)
	assert.Empty(t, cfg.Identity.Secret)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	cfg, err := LoadFromEnv("", map[string]string{
		"VILLAGE_BACKEND":          "redis",
		"VILLAGE_ENCODING":         "msgpack+zstd/v2",
		"VILLAGE_REDIS_ADDR":       "cache:6380",
		"VILLAGE_REDIS_DB":         "2",
		"VILLAGE_PATHS_SAVES_DIR":  "/data/saves",
		"VILLAGE_RESERVED_NPC_IDS": "1,2,3",
		"VILLAGE_LOG_LEVEL":        "debug",
		"VILLAGE_CACHE_TTL":        "30s",
		"VILLAGE_IDENTITY_SECRET":  "0123456789abcdef0123",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "msgpack+zstd/v2", cfg.Encoding)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "/data/saves", cfg.Paths.SavesDir)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.ReservedNPCIDs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "0123456789abcdef0123", cfg.Identity.Secret)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "village.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sql
sql:
  driver: postgres
  dsn: postgres://localhost/villages
paths:
  saves_dir: /srv/saves
log:
  format: console
cache:
  ttl: 1m
`), 0o644))

	cfg, err := LoadFromEnv(path, map[string]string{
		"VILLAGE_SQL_DSN": "postgres://db/villages",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendSQL, cfg.Backend)
	assert.Equal(t, "postgres", cfg.SQL.Driver)
	assert.Equal(t, "postgres://db/villages", cfg.SQL.DSN)
	assert.Equal(t, "/srv/saves", cfg.Paths.SavesDir)
	assert.Equal(t, "villages", cfg.Paths.VillagesDir, "unset yaml keys keep defaults")
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"), map[string]string{})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("backend: [unclosed"), 0o644))
	_, err = LoadFromEnv(bad, map[string]string{})
	assert.True(t, errors.IsCategory(err, errors.CategoryBadInput))

	_, err = LoadFromEnv("", map[string]string{"VILLAGE_REDIS_DB": "not-a-number"})
	assert.True(t, errors.IsCategory(err, errors.CategoryBadInput))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "firestore" }, "Backend"},
		{"legacy encoding cannot be written", func(c *Config) { c.Encoding = "" }, "Encoding"},
		{"unknown encoding", func(c *Config) { c.Encoding = "xml" }, "Encoding"},
		{"missing saves dir", func(c *Config) { c.Paths.SavesDir = "" }, "Paths.SavesDir"},
		{"sql without dsn", func(c *Config) {
			c.Backend = BackendSQL
			c.SQL.DSN = ""
		}, "SQL.DSN"},
		{"sql unknown driver", func(c *Config) {
			c.Backend = BackendSQL
			c.SQL.Driver = "mysql"
		}, "SQL.Driver"},
		{"redis without addr", func(c *Config) {
			c.Backend = BackendRedis
			c.Redis.Addr = ""
		}, "Redis.Addr"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "Log.Format"},
		{"short secret", func(c *Config) { c.Identity.Secret = "short" }, "Identity.Secret"},
		{"empty npc id", func(c *Config) { c.ReservedNPCIDs = []string{"1", ""} }, "ReservedNPCIDs.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, validationFields(t, err), tt.field)
		})
	}
}

func TestValidate_IgnoresInactiveBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SQL = SQLConfig{}
	cfg.Redis = RedisConfig{}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_Cache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
