package redisdoc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

var _ storage.BindingStore = (*Bindings)(nil)

// Bindings stores identity bindings as hashes at <prefix>users:<subject>.
type Bindings struct {
	client redis.Cmdable
	prefix string
}

// NewBindings returns a binding store on client.
func NewBindings(client redis.Cmdable, opts Options) *Bindings {
	return &Bindings{client: client, prefix: opts.KeyPrefix}
}

func (s *Bindings) key(subject string) string { return s.prefix + "users:" + subject }

func (s *Bindings) GetBinding(ctx context.Context, subject string) (storage.Binding, error) {
	fields, err := s.client.HGetAll(ctx, s.key(subject)).Result()
	if err != nil {
		return storage.Binding{}, village.BackendUnavailable(Name, err)
	}
	if len(fields) == 0 {
		return storage.Binding{}, storage.ErrBindingNotFound
	}

	b := storage.Binding{
		Subject:     fields["uid"],
		Email:       fields["email"],
		DisplayName: fields["display_name"],
		VillageID:   fields["userid"],
	}
	if b.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return storage.Binding{}, village.SerializationError(subject, fmt.Errorf("created_at: %w", err))
	}
	if b.LastLoginAt, err = parseTime(fields["last_login"]); err != nil {
		return storage.Binding{}, village.SerializationError(subject, fmt.Errorf("last_login: %w", err))
	}
	return b, nil
}

// parseTime reads a stored timestamp. A missing field is the zero time.
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func (s *Bindings) PutBinding(ctx context.Context, b storage.Binding) error {
	err := s.client.HSet(ctx, s.key(b.Subject), map[string]any{
		"uid":          b.Subject,
		"email":        b.Email,
		"display_name": b.DisplayName,
		"userid":       b.VillageID,
		"created_at":   b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"last_login":   b.LastLoginAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

func (s *Bindings) TouchLogin(ctx context.Context, subject string, at time.Time) error {
	key := s.key(subject)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	if n == 0 {
		return storage.ErrBindingNotFound
	}
	if err := s.client.HSet(ctx, key, "last_login", at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}
