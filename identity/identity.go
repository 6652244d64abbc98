// Package identity binds external identities to villages.
//
// A subject authenticated by the identity provider is resolved to a village id
// through a binding record. The first login of a subject creates a village and
// then writes the binding. The two writes are not transactional: when the
// binding write fails the new village is orphaned, the caller receives a
// PartialBindingFailure, and the next login creates a fresh village. Orphans
// are never reused.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/cache"
	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
	"github.com/goliatone/go-village-store/villagecache"
)

// Claims are the verified facts about the caller taken from a token.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks an identity token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Villages is the part of the store identity needs.
type Villages interface {
	Get(ctx context.Context, id string) (*village.Village, error)
	Create(ctx context.Context, opts ...villagecache.CreateOption) (*village.Village, error)
}

// Profile is the descriptive part of a binding.
type Profile struct {
	Email       string
	DisplayName string
}

// Session is the outcome of a successful authentication.
type Session struct {
	Subject   string
	Email     string
	VillageID string
	Created   bool
	Village   *village.Village
}

// LoginResult is the structured login response. It never carries a raw error.
type LoginResult struct {
	village.Result
	UID    string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"userid,omitempty"`
}

// Service logs subjects in and keeps their village bindings.
type Service struct {
	verifier Verifier
	bindings storage.BindingStore
	villages Villages
	cache    cache.CacheService
	keys     cache.KeySerializer
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches Resolve results for binding stores that do not cache their
// own lookups. Bind invalidates the subject's entry.
func WithCache(c cache.CacheService) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// WithClock overrides time.Now for login timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service over verifier, bindings and villages.
func NewService(verifier Verifier, bindings storage.BindingStore, villages Villages, opts ...Option) *Service {
	s := &Service{
		verifier: verifier,
		bindings: bindings,
		villages: villages,
		keys:     cache.NewKeySerializer("identity"),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the village id bound to subject, or
// storage.ErrBindingNotFound.
func (s *Service) Resolve(ctx context.Context, subject string) (string, error) {
	if s.cache == nil {
		return s.lookup(ctx, subject)
	}
	return cache.GetOrFetch(ctx, s.cache, s.resolveKey(subject), func(ctx context.Context) (string, error) {
		return s.lookup(ctx, subject)
	})
}

func (s *Service) lookup(ctx context.Context, subject string) (string, error) {
	b, err := s.bindings.GetBinding(ctx, subject)
	if err != nil {
		return "", err
	}
	return b.VillageID, nil
}

// Bind points subject at villageID. An existing binding keeps its creation
// time.
func (s *Service) Bind(ctx context.Context, subject, villageID string, profile Profile) error {
	now := s.now().UTC()
	b := storage.Binding{
		Subject:     subject,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		VillageID:   villageID,
		CreatedAt:   now,
		LastLoginAt: now,
	}

	existing, err := s.bindings.GetBinding(ctx, subject)
	switch {
	case err == nil:
		b.CreatedAt = existing.CreatedAt
	case !errors.Is(err, storage.ErrBindingNotFound):
		return err
	}

	if err := s.bindings.PutBinding(ctx, b); err != nil {
		return err
	}
	s.invalidate(ctx, subject)
	return nil
}

// Authenticate verifies token and returns the caller's village, creating and
// binding one on first login.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		wrapped := errors.Wrap(err, errors.CategoryAuth, "invalid identity token")
		if wrapped.TextCode == "" {
			wrapped = wrapped.WithTextCode("TOKEN_INVALID")
		}
		return Session{}, wrapped
	}
	if claims.Subject == "" {
		return Session{}, errors.New("identity token has no subject", errors.CategoryAuth).
			WithTextCode("TOKEN_INVALID")
	}

	session := Session{Subject: claims.Subject, Email: claims.Email}

	villageID, err := s.Resolve(ctx, claims.Subject)
	switch {
	case err == nil:
		return s.resume(ctx, session, villageID)
	case errors.Is(err, storage.ErrBindingNotFound):
		return s.register(ctx, session, claims)
	default:
		return Session{}, err
	}
}

func (s *Service) resume(ctx context.Context, session Session, villageID string) (Session, error) {
	if err := s.bindings.TouchLogin(ctx, session.Subject, s.now().UTC()); err != nil {
		s.logger.Warn("last login not updated", zap.String("subject", session.Subject), zap.Error(err))
	}

	v, err := s.villages.Get(ctx, villageID)
	if err != nil {
		s.logger.Error("bound village not found",
			zap.String("subject", session.Subject),
			zap.String("village_id", villageID),
			zap.Error(err),
		)
		return Session{}, err
	}

	session.VillageID = v.ID
	session.Village = v
	return session, nil
}

func (s *Service) register(ctx context.Context, session Session, claims Claims) (Session, error) {
	name := DisplayName(claims)

	v, err := s.villages.Create(ctx, villagecache.WithDisplayName(name))
	if err != nil {
		return Session{}, err
	}

	if err := s.Bind(ctx, claims.Subject, v.ID, Profile{Email: claims.Email, DisplayName: name}); err != nil {
		s.logger.Error("identity binding failed, village orphaned",
			zap.String("subject", claims.Subject),
			zap.String("village_id", v.ID),
			zap.Error(err),
		)
		return Session{}, village.PartialBindingFailure(claims.Subject, v.ID, err)
	}

	s.logger.Info("village bound to new identity",
		zap.String("subject", claims.Subject),
		zap.String("village_id", v.ID),
	)
	session.VillageID = v.ID
	session.Village = v
	session.Created = true
	return session, nil
}

// Login is Authenticate with the outcome folded into a LoginResult.
func (s *Service) Login(ctx context.Context, token string) LoginResult {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return LoginResult{Result: village.ResultFromError(err)}
	}
	return LoginResult{
		Result: village.OK(),
		UID:    session.Subject,
		Email:  session.Email,
		UserID: session.VillageID,
	}
}

// DisplayName picks the name for a new village: the token name, else the local
// part of the email address.
func DisplayName(c Claims) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}

func (s *Service) resolveKey(subject string) string {
	return s.keys.SerializeKey("Resolve", subject)
}

func (s *Service) invalidate(ctx context.Context, subject string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.resolveKey(subject)); err != nil {
		s.logger.Warn("resolve cache not invalidated", zap.String("subject", subject), zap.Error(err))
	}
}
