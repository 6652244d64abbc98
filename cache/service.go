package cache

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
)

// ErrInvalidResultType is returned when a cached value does not have the type
// the caller asked for, which happens when two call sites share a key.
var ErrInvalidResultType = errors.New("cached value has unexpected type", errors.CategoryInternal).WithTextCode("CACHE_INVALID_TYPE")

// KeySerializer builds a cache key from a method name and its arguments.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes read-through caching with explicit invalidation.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
}

// GetOrFetch is the type-safe entry point over CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("key %s: %w", key, ErrInvalidResultType)
	}
	return typed, nil
}
