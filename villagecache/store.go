package villagecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/migration"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// maxIDAttempts bounds the search for an unused id in Create.
const maxIDAttempts = 16

// ErrSeedMissing is returned by Create before a seed template is available.
var ErrSeedMissing = errors.New("seed template not loaded", errors.CategoryInternal).WithTextCode("SEED_MISSING")

// Store owns the in-memory set of loaded villages and writes saves through to
// the primary backend, falling back to a secondary backend when the primary
// fails.
//
// Lookups and saves are safe for concurrent use. The contents of a cached
// village are not guarded: callers mutating a village must be its single
// active writer until Save returns.
type Store struct {
	primary  storage.Backend
	fallback storage.Backend
	migrator migration.Migrator
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	seed   atomic.Pointer[village.Village]
	static *xsync.MapOf[string, *village.Village]
	quests *xsync.MapOf[string, *village.Village]
	saves  *xsync.MapOf[string, *village.Village]

	locks    *xsync.MapOf[string, *sync.Mutex]
	createMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithFallback sets the backend used when the primary fails.
func WithFallback(b storage.Backend) Option {
	return func(s *Store) { s.fallback = b }
}

// WithMigrator sets the migrator applied to every loaded or created village.
func WithMigrator(m migration.Migrator) Option {
	return func(s *Store) { s.migrator = m }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// WithClock overrides time.Now for villages created by Create.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithSeed sets the template for new villages without reading it from disk.
func WithSeed(seed *village.Village) Option {
	return func(s *Store) { s.seed.Store(village.Clone(seed)) }
}

// New returns a Store writing to primary.
func New(primary storage.Backend, opts ...Option) (*Store, error) {
	if primary == nil {
		return nil, errors.New("primary backend is required", errors.CategoryBadInput)
	}

	s := &Store{
		primary:  primary,
		migrator: migration.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		static:   xsync.NewMapOf[string, *village.Village](),
		quests:   xsync.NewMapOf[string, *village.Village](),
		saves:    xsync.NewMapOf[string, *village.Village](),
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the saved village id, loading it from the backends on a cache
// miss. Records that are absent, unreadable or invalid yield a NotFound error.
func (s *Store) Get(ctx context.Context, id string) (*village.Village, error) {
	if v, ok := s.saves.Load(id); ok {
		return v, nil
	}
	return s.loadThrough(ctx, id)
}

// Lookup resolves id against every partition: saves, then quests, then
// static villages, and finally the backends.
func (s *Store) Lookup(ctx context.Context, id string) (*village.Village, error) {
	for _, p := range []*xsync.MapOf[string, *village.Village]{s.saves, s.quests, s.static} {
		if v, ok := p.Load(id); ok {
			return v, nil
		}
	}
	return s.loadThrough(ctx, id)
}

// CreateOption customizes a new village.
type CreateOption func(*createOptions)

type createOptions struct {
	displayName string
}

// WithDisplayName sets playerInfo.name on the new village.
func WithDisplayName(name string) CreateOption {
	return func(o *createOptions) { o.displayName = name }
}

// Create copies the seed template into a new save with an id unused by any
// partition, migrates and persists it, then caches it.
func (s *Store) Create(ctx context.Context, opts ...CreateOption) (*village.Village, error) {
	seed := s.seed.Load()
	if seed == nil {
		return nil, ErrSeedMissing
	}

	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.unusedID()
	if err != nil {
		return nil, err
	}

	v := village.NewFromSeed(seed, id, o.displayName, s.now())
	if _, err := s.migrator.Migrate(v); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "migrate new village").
			WithMetadata(map[string]any{"village_id": id})
	}

	if err := s.persist(ctx, id, v); err != nil {
		return nil, err
	}
	s.saves.Store(id, v)

	s.logger.Info("village created", zap.String("village_id", id))
	return v, nil
}

// Save writes the cached village id to the primary backend. When the primary
// fails the village is written to the fallback and Save still succeeds. Saves
// of the same id are serialized.
func (s *Store) Save(ctx context.Context, id string) error {
	v, ok := s.saves.Load(id)
	if !ok {
		return village.NotFound(id)
	}

	mu, _ := s.locks.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	defer mu.Unlock()

	return s.persist(ctx, id, v)
}

func (s *Store) persist(ctx context.Context, id string, v *village.Village) error {
	err := s.primary.Store(ctx, id, v)
	if err == nil {
		return nil
	}

	if s.fallback == nil {
		s.logger.Error("store failed",
			zap.String("village_id", id),
			zap.String("backend", s.primary.Name()),
			zap.Error(err),
		)
		return unavailable(s.primary.Name(), err)
	}

	s.logger.Warn("primary store failed, writing to fallback",
		zap.String("village_id", id),
		zap.String("backend", s.primary.Name()),
		zap.String("fallback", s.fallback.Name()),
		zap.Error(err),
	)

	if ferr := s.fallback.Store(ctx, id, v); ferr != nil {
		s.logger.Error("fallback store failed",
			zap.String("village_id", id),
			zap.String("backend", s.fallback.Name()),
			zap.Error(ferr),
		)
		return village.BackendUnavailable(s.fallback.Name(), errors.Join(err, ferr))
	}
	return nil
}

func (s *Store) loadThrough(ctx context.Context, id string) (*village.Village, error) {
	rec, source, ok := s.fetch(ctx, id)
	if !ok {
		return nil, village.NotFound(id)
	}

	v, changed, err := s.prepare(id, rec)
	if err != nil {
		s.logger.Warn("dropping village record",
			zap.String("village_id", id),
			zap.String("backend", source),
			zap.Error(err),
		)
		return nil, village.NotFound(id)
	}

	if existing, loaded := s.saves.LoadOrStore(id, v); loaded {
		return existing, nil
	}

	if changed {
		if err := s.persist(ctx, id, v); err != nil {
			s.logger.Warn("re-save after migration failed", zap.String("village_id", id), zap.Error(err))
		}
	}
	return v, nil
}

// fetch reads id from the primary and then the fallback. A tier that is
// unreachable or holds an unreadable record is logged and skipped.
func (s *Store) fetch(ctx context.Context, id string) (village.Record, string, bool) {
	for _, b := range s.tiers() {
		rec, err := b.LoadOne(ctx, id)
		switch {
		case err == nil:
			return rec, b.Name(), true
		case village.IsNotFound(err):
			continue
		default:
			s.logger.Warn("backend read failed",
				zap.String("village_id", id),
				zap.String("backend", b.Name()),
				zap.Error(err),
			)
		}
	}
	return nil, "", false
}

// prepare validates rec and brings it to the current schema version.
func (s *Store) prepare(id string, rec village.Record) (*village.Village, bool, error) {
	v, err := village.FromRecord(id, rec)
	if err != nil {
		return nil, false, err
	}
	changed, err := s.migrator.Migrate(v)
	if err != nil {
		return nil, false, village.InvalidRecord(id, err)
	}
	return v, changed, nil
}

func (s *Store) tiers() []storage.Backend {
	if s.fallback == nil {
		return []storage.Backend{s.primary}
	}
	return []storage.Backend{s.primary, s.fallback}
}

func (s *Store) unusedID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id != "" && !s.known(id) {
			return id, nil
		}
	}
	return "", errors.New("could not allocate an unused village id", errors.CategoryInternal).
		WithTextCode("ID_EXHAUSTED")
}

func (s *Store) known(id string) bool {
	for _, p := range []*xsync.MapOf[string, *village.Village]{s.saves, s.quests, s.static} {
		if _, ok := p.Load(id); ok {
			return true
		}
	}
	return false
}

func unavailable(backend string, err error) error {
	if village.IsBackendUnavailable(err) {
		return err
	}
	return village.BackendUnavailable(backend, err)
}
