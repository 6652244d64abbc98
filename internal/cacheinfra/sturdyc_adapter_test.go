package cacheinfra_test

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/internal/cacheinfra"
)

func testConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           100,
		NumShards:          2,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := cacheinfra.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	if cfg.EarlyRefresh == nil {
		t.Fatal("expected early refresh to be enabled by default")
	}
	if cfg.EarlyRefresh.SyncRefreshTime >= cfg.TTL {
		t.Errorf("sync refresh %v must happen before TTL %v", cfg.EarlyRefresh.SyncRefreshTime, cfg.TTL)
	}
	if cfg.MissingRecordStorage {
		t.Error("missing record storage should be off by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cacheinfra.Config)
		field  string
	}{
		{"valid", func(*cacheinfra.Config) {}, ""},
		{"zero capacity", func(c *cacheinfra.Config) { c.Capacity = 0 }, "Capacity"},
		{"negative shards", func(c *cacheinfra.Config) { c.NumShards = -1 }, "NumShards"},
		{"zero ttl", func(c *cacheinfra.Config) { c.TTL = 0 }, "TTL"},
		{"eviction above 100", func(c *cacheinfra.Config) { c.EvictionPercentage = 101 }, "EvictionPercentage"},
		{"negative interval", func(c *cacheinfra.Config) { c.EvictionInterval = -time.Second }, "EvictionInterval"},
		{"negative early refresh", func(c *cacheinfra.Config) {
			c.EarlyRefresh = &cacheinfra.EarlyRefreshConfig{MinAsyncRefreshTime: -time.Second}
		}, "EarlyRefresh.MinAsyncRefreshTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if _, ok := e.ValidationMap()[tt.field]; !ok {
				t.Errorf("expected field %q in %v", tt.field, e.ValidationMap())
			}
		})
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := testConfig()
	if got := len(cfg.Options()); got != 0 {
		t.Errorf("expected no options, got %d", got)
	}

	cfg = cacheinfra.DefaultConfig()
	cfg.MissingRecordStorage = true
	cfg.EvictionInterval = time.Second
	if got := len(cfg.Options()); got != 3 {
		t.Errorf("expected 3 options, got %d", got)
	}
}

func TestNewSturdycService(t *testing.T) {
	service, err := cacheinfra.NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("cacheinfra.NewSturdycService: %v", err)
	}
	var _ cache.CacheService = service

	if _, err := cacheinfra.NewSturdycService(cacheinfra.Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}

func TestSturdycService_GetOrFetch(t *testing.T) {
	service, err := cacheinfra.NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("cacheinfra.NewSturdycService: %v", err)
	}
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) (any, error) {
			calls.Add(1)
			return "village-7", nil
		}

		for i := 0; i < 3; i++ {
			got, err := service.GetOrFetch(ctx, "hit-key", fetch)
			if err != nil || got != "village-7" {
				t.Fatalf("GetOrFetch = %v, %v", got, err)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("expected a single fetch, got %d", calls.Load())
		}
	})

	t.Run("errors are returned and not cached", func(t *testing.T) {
		boom := stderrors.New("backend down")
		var calls atomic.Int32
		fetch := func(context.Context) (any, error) {
			calls.Add(1)
			return nil, boom
		}

		for i := 0; i < 2; i++ {
			if _, err := service.GetOrFetch(ctx, "err-key", fetch); !stderrors.Is(err, boom) {
				t.Fatalf("expected fetch error, got %v", err)
			}
		}
		if calls.Load() != 2 {
			t.Errorf("expected every call to fetch, got %d", calls.Load())
		}
	})

	t.Run("nil fetch function", func(t *testing.T) {
		_, err := service.GetOrFetch(ctx, "nil-key", nil)
		if !errors.IsCategory(err, errors.CategoryBadInput) {
			t.Errorf("expected bad input error, got %v", err)
		}
	})

	t.Run("typed helper", func(t *testing.T) {
		got, err := cache.GetOrFetch(ctx, service, "typed-key", func(context.Context) (int, error) {
			return 42, nil
		})
		if err != nil || got != 42 {
			t.Errorf("GetOrFetch = %v, %v", got, err)
		}
	})
}

func TestSturdycService_Delete(t *testing.T) {
	service, err := cacheinfra.NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("cacheinfra.NewSturdycService: %v", err)
	}
	ctx := context.Background()

	value := "first"
	fetch := func(context.Context) (any, error) { return value, nil }

	if _, err := service.GetOrFetch(ctx, "k", fetch); err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if service.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", service.Len())
	}

	value = "second"
	if got, _ := service.GetOrFetch(ctx, "k", fetch); got != "first" {
		t.Errorf("expected cached value, got %v", got)
	}

	if err := service.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := service.GetOrFetch(ctx, "k", fetch); got != "second" {
		t.Errorf("expected refreshed value, got %v", got)
	}

	if err := service.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing key must not fail: %v", err)
	}
}
