package cache

import "github.com/goliatone/go-village-store/internal/cacheinfra"

// Config configures the default in-memory CacheService.
type Config = cacheinfra.Config

// EarlyRefreshConfig controls background refresh of hot entries.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewCacheService builds the default CacheService.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg)
}
