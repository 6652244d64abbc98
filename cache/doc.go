// Package cache provides read-through caching used by the identity layer to
// avoid a binding lookup on every request.
//
// CacheService is the small contract the rest of the module depends on.
// GetOrFetch adds type safety on top of it:
//
//	villageID, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (string, error) {
//		return bindings.Lookup(ctx, subject)
//	})
//
// Keys are built with a KeySerializer so that call sites sharing a namespace
// never collide. Callers that change the underlying data must Delete the key.
package cache
