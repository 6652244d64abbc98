// Package config loads the store settings from defaults, an optional YAML
// file and VILLAGE_ prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/codec"
	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/internal/sqldoc"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VILLAGE_"

// Backend names.
const (
	BackendFile  = "file"
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// Config is the full runtime configuration.
type Config struct {
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// Backend selects the primary store. The flat-file store is the fallback
	// for the database backends.
	Backend  string `yaml:"backend" env:"BACKEND"`
	Encoding string `yaml:"encoding" env:"ENCODING"`

	Paths    PathsConfig    `yaml:"paths" envPrefix:"PATHS_"`
	SQL      SQLConfig      `yaml:"sql" envPrefix:"SQL_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Identity IdentityConfig `yaml:"identity" envPrefix:"IDENTITY_"`
	Cache    cache.Config   `yaml:"cache" envPrefix:"CACHE_"`

	// ReservedNPCIDs never show up as friends or neighbors.
	ReservedNPCIDs []string `yaml:"reserved_npc_ids" env:"RESERVED_NPC_IDS" envSeparator:","`
}

// PathsConfig locates the flat-file data directories.
type PathsConfig struct {
	VillagesDir string `yaml:"villages_dir" env:"VILLAGES_DIR"`
	QuestsDir   string `yaml:"quests_dir" env:"QUESTS_DIR"`
	SavesDir    string `yaml:"saves_dir" env:"SAVES_DIR"`
	SeedFile    string `yaml:"seed_file" env:"SEED_FILE"`
}

// SQLConfig selects the bun driver and its DSN.
type SQLConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

// RedisConfig holds the Redis connection and key prefix.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// IdentityConfig configures token verification. An empty Secret disables
// login.
type IdentityConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"`
	Issuer   string `yaml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// DefaultConfig matches the directory layout of the game server.
func DefaultConfig() Config {
	return Config{
		ServiceName: "villagestore",
		Backend:     BackendFile,
		Encoding:    string(codec.EncodingJSON),
		Paths: PathsConfig{
			VillagesDir: "villages",
			QuestsDir:   "villages/quest",
			SavesDir:    "saves",
			SeedFile:    "villages/initial.json",
		},
		SQL: SQLConfig{
			Driver: sqldoc.DriverSQLite,
			DSN:    "file:villages.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "village:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
		Cache:          cache.DefaultConfig(),
		ReservedNPCIDs: []string{"100000030", "100000031"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the process environment.
func Load(path string) (Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix})
}

// LoadFromEnv is Load with an explicit environment instead of the process one.
func LoadFromEnv(path string, environ map[string]string) (Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix, Environment: environ})
}

func load(path string, opts env.Options) (Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, errors.CategoryInternal, "read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, errors.CategoryBadInput, fmt.Sprintf("%s: invalid yaml", path))
		}
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "parse env")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems together.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFile, BackendSQL, BackendRedis)),
		validation.Field(&c.Encoding, validation.Required, validation.By(validEncoding)),
		validation.Field(&c.Paths, validation.By(func(any) error { return c.Paths.validate() })),
		validation.Field(&c.SQL, validation.When(c.Backend == BackendSQL, validation.By(func(any) error {
			return c.SQL.validate()
		}))),
		validation.Field(&c.Redis, validation.When(c.Backend == BackendRedis, validation.By(func(any) error {
			return c.Redis.validate()
		}))),
		validation.Field(&c.Log, validation.By(func(any) error { return c.Log.validate() })),
		validation.Field(&c.Identity, validation.By(func(any) error { return c.Identity.validate() })),
		validation.Field(&c.ReservedNPCIDs, validation.Each(validation.Required)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid configuration").WithTextCode("CONFIG_INVALID")
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return nil
}

func validEncoding(v any) error {
	s, _ := v.(string)
	_, err := codec.ParseEncoding(s)
	return err
}

func (p *PathsConfig) validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.VillagesDir, validation.Required),
		validation.Field(&p.SavesDir, validation.Required),
		validation.Field(&p.SeedFile, validation.Required),
	)
}

func (s *SQLConfig) validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Driver, validation.Required, validation.In(sqldoc.DriverSQLite, sqldoc.DriverPostgres)),
		validation.Field(&s.DSN, validation.Required),
	)
}

func (r *RedisConfig) validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

func (l *LogConfig) validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Format, validation.In(logging.FormatJSON, logging.FormatConsole)),
	)
}

func (i *IdentityConfig) validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.Secret, validation.Length(16, 0)),
	)
}
