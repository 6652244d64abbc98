// Package repositorycache adds read-through caching to a go-repository-bun
// repository.
//
// CachedRepository embeds the base repository.Repository[T], so every method
// is available. Only the plain reads are cached:
//
//   - Get, GetByID, GetByIdentifier
//   - List, Count
//
// Reads inside a transaction, raw queries and Handlers reach the base
// repository untouched.
//
// Every cached key is registered under a scope: the record id for GetByID,
// the identifier value for GetByIdentifier, and a shared query scope for
// Get, List and Count. A successful write drops the scopes of the records it
// touched plus the query scope. Writes given only criteria (DeleteMany,
// DeleteWhere) drop everything. Without WithIDFunc or WithIdentifierFunc the
// decorator cannot target a record and flushes every tracked key on write.
//
//	base := repository.NewRepository[*userRow](db, handlers)
//	cached := repositorycache.New(base, cacheService, cache.NewKeySerializer("users"),
//		repositorycache.WithIdentifierFunc(func(r *userRow) string { return r.UID }),
//	)
//	row, err := cached.GetByIdentifier(ctx, uid)
//
// Errors from the base repository are returned unchanged and never cached.
package repositorycache
