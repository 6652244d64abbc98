package storage

import (
	"context"
	"time"

	"github.com/goliatone/go-village-store/village"
)

// Entry is one record returned by a bulk load. Err is set when the record
// exists but could not be read or decoded; the load as a whole still succeeds.
type Entry struct {
	ID     string
	Record village.Record
	Err    error
}

// Backend persists saved villages keyed by id.
//
// LoadOne returns a village.NotFound error when id is absent and a
// village.BackendUnavailable error when the backend cannot be reached.
type Backend interface {
	Name() string
	LoadOne(ctx context.Context, id string) (village.Record, error)
	LoadAll(ctx context.Context) ([]Entry, error)
	Store(ctx context.Context, id string, v *village.Village) error
}

// Binding associates an external identity with a village.
type Binding struct {
	Subject     string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	VillageID   string    `json:"userid"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login"`
}

// BindingStore persists identity bindings keyed by subject.
type BindingStore interface {
	GetBinding(ctx context.Context, subject string) (Binding, error)
	PutBinding(ctx context.Context, b Binding) error
	TouchLogin(ctx context.Context, subject string, at time.Time) error
}
