package sqldoc

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/repositorycache"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

var _ storage.BindingStore = (*Bindings)(nil)

// userRow is one binding of the users collection, looked up by uid.
type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UID         string    `bun:"uid,notnull,unique"`
	Email       string    `bun:"email"`
	DisplayName string    `bun:"display_name"`
	VillageID   string    `bun:"userid,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	LastLogin   time.Time `bun:"last_login,notnull"`
}

func (r *userRow) binding() storage.Binding {
	return storage.Binding{
		Subject:     r.UID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		VillageID:   r.VillageID,
		CreatedAt:   r.CreatedAt,
		LastLoginAt: r.LastLogin,
	}
}

func userHandlers() repository.ModelHandlers[*userRow] {
	return repository.ModelHandlers[*userRow]{
		NewRecord: func() *userRow { return &userRow{} },
		GetID: func(r *userRow) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID:         func(r *userRow, id uuid.UUID) { r.ID = id },
		GetIdentifier: func() string { return "uid" },
	}
}

func byPK(q *bun.UpdateQuery) *bun.UpdateQuery { return q.WherePK() }

// BindingsOption configures Bindings.
type BindingsOption func(*bindingsOptions)

type bindingsOptions struct {
	cache  cache.CacheService
	keys   cache.KeySerializer
	logger *zap.Logger
}

// WithBindingCache serves binding lookups through svc. Writes invalidate the
// entries of the subject they touch.
func WithBindingCache(svc cache.CacheService, keys cache.KeySerializer, logger *zap.Logger) BindingsOption {
	return func(o *bindingsOptions) {
		o.cache = svc
		o.keys = keys
		o.logger = logger
	}
}

// Bindings stores identity bindings in the users table through a
// go-repository-bun repository.
type Bindings struct {
	repo repository.Repository[*userRow]
}

// NewBindings returns a binding store on db.
func NewBindings(db *bun.DB, opts ...BindingsOption) *Bindings {
	var o bindingsOptions
	for _, opt := range opts {
		opt(&o)
	}

	repo := repository.NewRepository[*userRow](db, userHandlers())
	if o.cache != nil {
		keys := o.keys
		if keys == nil {
			keys = cache.NewKeySerializer("users")
		}
		repo = repositorycache.New(repo, o.cache, keys,
			repositorycache.WithIDFunc(func(r *userRow) string { return r.ID.String() }),
			repositorycache.WithIdentifierFunc(func(r *userRow) string { return r.UID }),
			repositorycache.WithLogger[*userRow](o.logger),
		)
	}
	return &Bindings{repo: repo}
}

func (s *Bindings) find(ctx context.Context, subject string) (*userRow, error) {
	row, err := s.repo.GetByIdentifier(ctx, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.IsNotFound(err) {
			return nil, storage.ErrBindingNotFound
		}
		return nil, village.BackendUnavailable(Name, err)
	}
	return row, nil
}

func (s *Bindings) GetBinding(ctx context.Context, subject string) (storage.Binding, error) {
	row, err := s.find(ctx, subject)
	if err != nil {
		return storage.Binding{}, err
	}
	return row.binding(), nil
}

// PutBinding creates the subject's row or rewrites it in place. The creation
// time of an existing row is kept.
func (s *Bindings) PutBinding(ctx context.Context, b storage.Binding) error {
	row := &userRow{
		UID:         b.Subject,
		Email:       b.Email,
		DisplayName: b.DisplayName,
		VillageID:   b.VillageID,
		CreatedAt:   b.CreatedAt.UTC(),
		LastLogin:   b.LastLoginAt.UTC(),
	}

	existing, err := s.find(ctx, b.Subject)
	switch {
	case err == nil:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		_, err = s.repo.Update(ctx, row, byPK)
	case errors.Is(err, storage.ErrBindingNotFound):
		row.ID = uuid.New()
		_, err = s.repo.Create(ctx, row)
	default:
		return err
	}
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

func (s *Bindings) TouchLogin(ctx context.Context, subject string, at time.Time) error {
	existing, err := s.find(ctx, subject)
	if err != nil {
		return err
	}

	// Cached rows are shared; update a copy.
	row := *existing
	row.LastLogin = at.UTC()
	if _, err := s.repo.Update(ctx, &row, byPK); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}
