package di

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/codec"
	"github.com/goliatone/go-village-store/config"
	"github.com/goliatone/go-village-store/identity"
	"github.com/goliatone/go-village-store/identity/jwtverify"
	"github.com/goliatone/go-village-store/internal/flatfile"
	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/internal/redisdoc"
	"github.com/goliatone/go-village-store/internal/sqldoc"
	"github.com/goliatone/go-village-store/migration"
	"github.com/goliatone/go-village-store/neighbors"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/villagecache"
)

// ErrIdentityDisabled is returned by Identity when no token secret is configured.
var ErrIdentityDisabled = errors.New("identity login is not configured", errors.CategoryInternal).
	WithTextCode("IDENTITY_DISABLED")

// Container wires the store components from a config.Config. The backend is
// selected once, here: the flat-file store alone, or a document store with the
// flat-file store as its fallback.
type Container struct {
	config        config.Config
	logger        *zap.Logger
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	codec         *codec.Codec

	saves    *flatfile.Backend
	primary  storage.Backend
	fallback storage.Backend
	bindings storage.BindingStore
	// bindingsCached is set when the binding store caches its own lookups.
	bindingsCached bool

	store     *villagecache.Store
	neighbors *neighbors.Resolver
	identity  *identity.Service

	closers []func() error
}

// Option overrides a component the container would otherwise build.
type Option func(*options)

type options struct {
	logger *zap.Logger
	redis  redis.UniversalClient
	db     *bun.DB
}

// WithLogger uses l instead of building one from the log config.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRedisClient uses client for the redis backend. The container does not
// close it.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}

// WithDB uses db for the sql backend. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) { o.db = db }
}

// NewContainer validates cfg and builds every component. Nothing is loaded
// until Load is called.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{config: cfg}

	if o.logger != nil {
		c.logger = o.logger
	} else {
		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	cacheService, err := cache.NewCacheService(cfg.Cache)
	if err != nil {
		return nil, err
	}
	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()

	enc, err := codec.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if c.codec, err = codec.New(enc); err != nil {
		return nil, err
	}

	c.saves = flatfile.New(cfg.Paths.SavesDir)
	if err := c.selectBackend(ctx, o); err != nil {
		c.Close()
		return nil, err
	}

	storeOpts := []villagecache.Option{
		villagecache.WithMigrator(migration.Default()),
		villagecache.WithLogger(c.logger.Named("store")),
	}
	if c.fallback != nil {
		storeOpts = append(storeOpts, villagecache.WithFallback(c.fallback))
	}
	if c.store, err = villagecache.New(c.primary, storeOpts...); err != nil {
		c.Close()
		return nil, err
	}

	c.neighbors = neighbors.NewResolver(c.store,
		neighbors.WithReservedIDs(cfg.ReservedNPCIDs...),
		neighbors.WithLogger(c.logger.Named("neighbors")),
	)

	if cfg.Identity.Secret != "" {
		verifier, err := jwtverify.New(jwtverify.Config{
			Secret:   []byte(cfg.Identity.Secret),
			Issuer:   cfg.Identity.Issuer,
			Audience: cfg.Identity.Audience,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		identityOpts := []identity.Option{identity.WithLogger(c.logger.Named("identity"))}
		if !c.bindingsCached {
			identityOpts = append(identityOpts, identity.WithCache(c.cacheService))
		}
		c.identity = identity.NewService(verifier, c.bindings, c.store, identityOpts...)
	}

	c.logger.Info("container ready",
		zap.String("backend", c.primary.Name()),
		zap.Bool("fallback", c.fallback != nil),
		zap.String("encoding", string(c.codec.Encoding())),
		zap.Bool("identity", c.identity != nil),
	)
	return c, nil
}

// selectBackend builds the primary backend and the binding store. A database
// that cannot be reached at startup is logged; the store then serves from the
// flat-file fallback until it recovers.
func (c *Container) selectBackend(ctx context.Context, o *options) error {
	switch c.config.Backend {
	case config.BackendSQL:
		db := o.db
		if db == nil {
			var err error
			if db, err = sqldoc.Open(c.config.SQL.Driver, c.config.SQL.DSN); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "open sql backend").
					WithTextCode("BACKEND_OPEN")
			}
			c.closers = append(c.closers, db.Close)
		}
		if err := sqldoc.CreateSchema(ctx, db); err != nil {
			c.logger.Warn("sql schema not created, serving from fallback", zap.Error(err))
		}
		c.primary = sqldoc.New(db, c.codec)
		c.bindings = sqldoc.NewBindings(db, sqldoc.WithBindingCache(
			c.cacheService, cache.NewKeySerializer("users"), c.logger.Named("bindings"),
		))
		c.bindingsCached = true
		c.fallback = c.saves

	case config.BackendRedis:
		client := o.redis
		if client == nil {
			rc := redisdoc.NewClient(c.config.Redis.Addr, c.config.Redis.Password, c.config.Redis.DB)
			c.closers = append(c.closers, rc.Close)
			client = rc
		}
		if err := redisdoc.Ping(ctx, client); err != nil {
			c.logger.Warn("redis not reachable, serving from fallback",
				zap.String("addr", c.config.Redis.Addr),
				zap.Error(err),
			)
		}
		ropts := redisdoc.Options{KeyPrefix: c.config.Redis.KeyPrefix}
		c.primary = redisdoc.New(client, c.codec, ropts)
		c.bindings = redisdoc.NewBindings(client, ropts)
		c.fallback = c.saves

	default:
		c.primary = c.saves
		c.bindings = storage.NewMemoryBindings()
	}
	return nil
}

// Load reads the static villages and every save into the store.
func (c *Container) Load(ctx context.Context) error {
	_, err := c.store.LoadStatic(ctx, villagecache.StaticPaths{
		VillagesDir: c.config.Paths.VillagesDir,
		QuestsDir:   c.config.Paths.QuestsDir,
		SeedFile:    c.config.Paths.SeedFile,
	})
	if err != nil {
		return err
	}
	_, err = c.store.LoadAll(ctx)
	return err
}

// Close releases connections the container opened and flushes the logger.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

// Config returns the validated configuration.
func (c *Container) Config() config.Config { return c.config }

func (c *Container) Logger() *zap.Logger { return c.logger }

// CacheService returns the shared cache used for binding resolution.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

func (c *Container) Codec() *codec.Codec { return c.codec }

func (c *Container) Store() *villagecache.Store { return c.store }

// Primary returns the backend saves are written to.
func (c *Container) Primary() storage.Backend { return c.primary }

// Fallback returns the fallback backend, or nil when the flat-file store is
// the primary.
func (c *Container) Fallback() storage.Backend { return c.fallback }

// FlatFile returns the flat-file save store regardless of the selected backend.
func (c *Container) FlatFile() *flatfile.Backend { return c.saves }

func (c *Container) Bindings() storage.BindingStore { return c.bindings }

func (c *Container) Neighbors() *neighbors.Resolver { return c.neighbors }

// Identity returns the login service, or ErrIdentityDisabled.
func (c *Container) Identity() (*identity.Service, error) {
	if c.identity == nil {
		return nil, ErrIdentityDisabled
	}
	return c.identity, nil
}
