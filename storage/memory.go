package storage

import (
	"context"
	"sort"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-village-store/village"
)

// ErrBindingNotFound is returned by binding stores for unknown subjects.
var ErrBindingNotFound = errors.New("identity binding not found", errors.CategoryNotFound).WithTextCode("BINDING_NOT_FOUND")

// MemoryBindings is a process-local BindingStore used when the flat-file
// backend is the only tier and by tests.
type MemoryBindings struct {
	bindings *xsync.MapOf[string, Binding]
}

// NewMemoryBindings returns an empty binding store.
func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{bindings: xsync.NewMapOf[string, Binding]()}
}

func (m *MemoryBindings) GetBinding(_ context.Context, subject string) (Binding, error) {
	b, ok := m.bindings.Load(subject)
	if !ok {
		return Binding{}, ErrBindingNotFound
	}
	return b, nil
}

func (m *MemoryBindings) PutBinding(_ context.Context, b Binding) error {
	m.bindings.Store(b.Subject, b)
	return nil
}

func (m *MemoryBindings) TouchLogin(_ context.Context, subject string, at time.Time) error {
	var found bool
	m.bindings.Compute(subject, func(old Binding, loaded bool) (Binding, bool) {
		if !loaded {
			return old, true
		}
		found = true
		old.LastLoginAt = at
		return old, false
	})
	if !found {
		return ErrBindingNotFound
	}
	return nil
}

// MemoryBackend keeps records in memory. It stands in for a remote document
// store in tests and exercises the same encode and decode path through Records.
type MemoryBackend struct {
	name    string
	records *xsync.MapOf[string, village.Record]
}

// NewMemoryBackend returns an empty backend reporting name.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{name: name, records: xsync.NewMapOf[string, village.Record]()}
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) LoadOne(_ context.Context, id string) (village.Record, error) {
	rec, ok := m.records.Load(id)
	if !ok {
		return nil, village.NotFound(id)
	}
	return rec, nil
}

func (m *MemoryBackend) LoadAll(_ context.Context) ([]Entry, error) {
	var entries []Entry
	m.records.Range(func(id string, rec village.Record) bool {
		entries = append(entries, Entry{ID: id, Record: rec})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *MemoryBackend) Store(_ context.Context, id string, v *village.Village) error {
	m.records.Store(id, village.ToRecord(v))
	return nil
}

// Put seeds a raw record, bypassing validation.
func (m *MemoryBackend) Put(id string, rec village.Record) {
	m.records.Store(id, rec)
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	return m.records.Size()
}
