package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/internal/logging"
)

var _ repository.Repository[any] = (*CachedRepository[any])(nil)

const queryScope = "query"

func idScope(id string) string                 { return "id:" + id }
func identifierScope(identifier string) string { return "identifier:" + identifier }

// listResult holds the List tuple as one cached value.
type listResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

// CachedRepository decorates a base repository with read-through caching.
type CachedRepository[T any] struct {
	repository.Repository[T]

	cache      cache.CacheService
	keys       cache.KeySerializer
	scopes     *xsync.MapOf[string, string]
	id         func(T) string
	identifier func(T) string
	logger     *zap.Logger
}

// Option configures a CachedRepository.
type Option[T any] func(*CachedRepository[T])

// WithIDFunc lets writes drop the GetByID entries of the records they touch.
func WithIDFunc[T any](fn func(T) string) Option[T] {
	return func(c *CachedRepository[T]) { c.id = fn }
}

// WithIdentifierFunc lets writes drop the GetByIdentifier entries of the
// records they touch.
func WithIdentifierFunc[T any](fn func(T) string) Option[T] {
	return func(c *CachedRepository[T]) { c.identifier = fn }
}

// WithLogger reports failed cache deletions. A nil logger discards output.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(c *CachedRepository[T]) { c.logger = logging.OrNop(l) }
}

// New wraps base with caching through cacheService.
func New[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Option[T]) *CachedRepository[T] {
	c := &CachedRepository[T]{
		Repository: base,
		cache:      cacheService,
		keys:       keySerializer,
		scopes:     xsync.NewMapOf[string, string](),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the undecorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] {
	return c.Repository
}

func (c *CachedRepository[T]) track(key, scope string) string {
	c.scopes.Store(key, scope)
	return key
}

func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	key := c.track(c.keys.SerializeKey("Get", criteria), queryScope)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.Repository.Get(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.track(c.keys.SerializeKey("GetByID", id, criteria), idScope(id))
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.Repository.GetByID(ctx, id, criteria...)
	})
}

func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.track(c.keys.SerializeKey("GetByIdentifier", identifier, criteria), identifierScope(identifier))
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.Repository.GetByIdentifier(ctx, identifier, criteria...)
	})
}

func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	key := c.track(c.keys.SerializeKey("List", criteria), queryScope)
	res, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.Repository.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	key := c.track(c.keys.SerializeKey("Count", criteria), queryScope)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (int, error) {
		return c.Repository.Count(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	out, err := c.Repository.Create(ctx, record, criteria...)
	return out, c.afterWrite(ctx, err, out)
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	out, err := c.Repository.CreateTx(ctx, tx, record, criteria...)
	return out, c.afterWrite(ctx, err, out)
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	out, err := c.Repository.CreateMany(ctx, records, criteria...)
	return out, c.afterWrite(ctx, err, out...)
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	out, err := c.Repository.CreateManyTx(ctx, tx, records, criteria...)
	return out, c.afterWrite(ctx, err, out...)
}

func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	out, err := c.Repository.GetOrCreate(ctx, record)
	return out, c.afterWrite(ctx, err, out)
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	out, err := c.Repository.GetOrCreateTx(ctx, tx, record)
	return out, c.afterWrite(ctx, err, out)
}

func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	out, err := c.Repository.Update(ctx, record, criteria...)
	return out, c.afterWrite(ctx, err, record)
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	out, err := c.Repository.UpdateTx(ctx, tx, record, criteria...)
	return out, c.afterWrite(ctx, err, record)
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	out, err := c.Repository.UpdateMany(ctx, records, criteria...)
	return out, c.afterWrite(ctx, err, records...)
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	out, err := c.Repository.UpdateManyTx(ctx, tx, records, criteria...)
	return out, c.afterWrite(ctx, err, records...)
}

func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	out, err := c.Repository.Upsert(ctx, record, criteria...)
	return out, c.afterWrite(ctx, err, record)
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	out, err := c.Repository.UpsertTx(ctx, tx, record, criteria...)
	return out, c.afterWrite(ctx, err, record)
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	out, err := c.Repository.UpsertMany(ctx, records, criteria...)
	return out, c.afterWrite(ctx, err, records...)
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	out, err := c.Repository.UpsertManyTx(ctx, tx, records, criteria...)
	return out, c.afterWrite(ctx, err, records...)
}

func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, c.Repository.Delete(ctx, record), record)
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.afterWrite(ctx, c.Repository.DeleteTx(ctx, tx, record), record)
}

func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, c.Repository.ForceDelete(ctx, record), record)
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.afterWrite(ctx, c.Repository.ForceDeleteTx(ctx, tx, record), record)
}

func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterBulkWrite(ctx, c.Repository.DeleteMany(ctx, criteria...))
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.afterBulkWrite(ctx, c.Repository.DeleteManyTx(ctx, tx, criteria...))
}

func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterBulkWrite(ctx, c.Repository.DeleteWhere(ctx, criteria...))
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.afterBulkWrite(ctx, c.Repository.DeleteWhereTx(ctx, tx, criteria...))
}

// afterWrite drops the entries the written records may have changed. It
// returns err unchanged.
func (c *CachedRepository[T]) afterWrite(ctx context.Context, err error, records ...T) error {
	if err != nil {
		return err
	}
	if c.id == nil || c.identifier == nil {
		c.invalidate(ctx, func(string) bool { return true })
		return nil
	}

	stale := map[string]bool{queryScope: true}
	for _, r := range records {
		stale[idScope(c.id(r))] = true
		stale[identifierScope(c.identifier(r))] = true
	}
	c.invalidate(ctx, func(scope string) bool { return stale[scope] })
	return nil
}

func (c *CachedRepository[T]) afterBulkWrite(ctx context.Context, err error) error {
	if err == nil {
		c.invalidate(ctx, func(string) bool { return true })
	}
	return err
}

// Invalidate drops every tracked entry.
func (c *CachedRepository[T]) Invalidate(ctx context.Context) {
	c.invalidate(ctx, func(string) bool { return true })
}

func (c *CachedRepository[T]) invalidate(ctx context.Context, match func(scope string) bool) {
	c.scopes.Range(func(key, scope string) bool {
		if !match(scope) {
			return true
		}
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("cache entry not invalidated", zap.String("key", key), zap.Error(err))
			return true
		}
		c.scopes.Delete(key)
		return true
	})
}
