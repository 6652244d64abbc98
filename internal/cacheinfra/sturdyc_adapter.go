package cacheinfra

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc client settings.
type Config struct {
	// Capacity is the maximum number of entries held in memory.
	Capacity int `yaml:"capacity" env:"CAPACITY"`

	// NumShards spreads entries across independently locked shards.
	NumShards int `yaml:"num_shards" env:"NUM_SHARDS"`

	// TTL is how long a resolved entry is served before it is fetched again.
	TTL time.Duration `yaml:"ttl" env:"TTL"`

	// EvictionPercentage is the share of entries dropped when Capacity is reached.
	EvictionPercentage int `yaml:"eviction_percentage" env:"EVICTION_PERCENTAGE"`

	// EarlyRefresh refreshes hot entries in the background. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig `yaml:"early_refresh"`

	// MissingRecordStorage caches sturdyc.ErrNotFound results.
	MissingRecordStorage bool `yaml:"missing_record_storage" env:"MISSING_RECORD_STORAGE"`

	// EvictionInterval overrides the expiry sweep interval when positive.
	EvictionInterval time.Duration `yaml:"eviction_interval" env:"EVICTION_INTERVAL"`
}

// EarlyRefreshConfig mirrors sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async"`
	SyncRefreshTime     time.Duration `yaml:"sync"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns settings sized for a single game server's login
// traffic. Bindings rarely change, so entries live for a few minutes and a
// rebind invalidates explicitly.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 1 * time.Minute,
			MaxAsyncRefreshTime: 2 * time.Minute,
			SyncRefreshTime:     4 * time.Minute,
			RetryBaseDelay:      100 * time.Millisecond,
		},
	}
}

// Options returns the sturdyc options that are not constructor arguments.
func (c Config) Options() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EarlyRefresh),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid cache config").WithTextCode("CACHE_CONFIG_INVALID")
	}
	return nil
}

func (e *EarlyRefreshConfig) Validate() error {
	nonNegative := validation.Min(time.Duration(0))
	return validation.ValidateStruct(e,
		validation.Field(&e.MinAsyncRefreshTime, nonNegative),
		validation.Field(&e.MaxAsyncRefreshTime, nonNegative),
		validation.Field(&e.SyncRefreshTime, nonNegative),
		validation.Field(&e.RetryBaseDelay, nonNegative),
	)
}

// SturdycService adapts a sturdyc client to cache.CacheService.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.Options()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the cached value for key, calling fetchFn on a miss.
// Concurrent misses for the same key share a single fetch. A failed fetch is
// not cached.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, errors.New("fetch function cannot be nil", errors.CategoryBadInput).
			WithTextCode("CACHE_FETCH_NIL").
			WithMetadata(map[string]any{"key": key})
	}
	return s.client.GetOrFetch(ctx, key, fetchFn)
}

// Delete drops key so the next lookup goes to the source.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Len reports the number of cached entries.
func (s *SturdycService) Len() int {
	return len(s.client.ScanKeys())
}
