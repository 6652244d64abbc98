package storage

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-village-store/village"
)

func TestMemoryBindings(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBindings()

	if _, err := m.GetBinding(ctx, "sub"); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("expected ErrBindingNotFound, got %v", err)
	}
	if err := m.TouchLogin(ctx, "sub", time.Now()); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("touching an unknown subject: got %v", err)
	}

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := m.PutBinding(ctx, Binding{Subject: "sub", VillageID: "v1", CreatedAt: created}); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}

	touched := created.Add(48 * time.Hour)
	if err := m.TouchLogin(ctx, "sub", touched); err != nil {
		t.Fatalf("TouchLogin: %v", err)
	}

	b, err := m.GetBinding(ctx, "sub")
	if err != nil {
		t.Fatalf("GetBinding: %v", err)
	}
	if b.VillageID != "v1" || !b.CreatedAt.Equal(created) || !b.LastLoginAt.Equal(touched) {
		t.Fatalf("unexpected binding: %+v", b)
	}

	// A failed touch must not create an entry.
	_ = m.TouchLogin(ctx, "ghost", touched)
	if _, err := m.GetBinding(ctx, "ghost"); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("ghost binding created: %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend("memory")

	if m.Name() != "memory" {
		t.Fatalf("Name() = %q", m.Name())
	}
	if _, err := m.LoadOne(ctx, "1"); !village.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	v := &village.Village{
		ID:           "2",
		PlayerInfo:   map[string]any{"pid": "2", "name": "Ana"},
		Maps:         []map[string]any{{"xp": float64(1)}},
		PrivateState: map[string]any{},
	}
	if err := m.Store(ctx, v.ID, v); err != nil {
		t.Fatalf("Store: %v", err)
	}
	m.Put("1", village.Record{"broken": true})

	rec, err := m.LoadOne(ctx, "2")
	if err != nil {
		t.Fatalf("LoadOne: %v", err)
	}
	info, _ := rec["playerInfo"].(map[string]any)
	if info["name"] != "Ana" {
		t.Fatalf("unexpected record: %v", rec)
	}

	entries, err := m.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "1" || entries[1].ID != "2" {
		t.Fatalf("entries not sorted by id: %+v", entries)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d", m.Len())
	}
}
