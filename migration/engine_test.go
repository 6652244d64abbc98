package migration

import (
	"errors"
	"testing"

	"github.com/goliatone/go-village-store/pkg/testsupport"
	"github.com/goliatone/go-village-store/village"
)

func newVillage(t *testing.T) *village.Village {
	t.Helper()
	v, err := village.FromRecord("v1", village.Record(testsupport.VillageRecord("v1", "Ana")))
	if err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
	return v
}

func TestEngineMigratesUnversioned(t *testing.T) {
	var applied []string
	e := MustEngine(
		Step{Version: "1", Apply: func(*village.Village) error { applied = append(applied, "1"); return nil }},
		Step{Version: "2", Apply: func(*village.Village) error { applied = append(applied, "2"); return nil }},
	)
	v := newVillage(t)

	changed, err := e.Migrate(v)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !changed {
		t.Error("expected change")
	}
	if v.Version() != "2" || e.Current() != "2" {
		t.Errorf("expected version 2, got %q", v.Version())
	}
	if len(applied) != 2 || applied[0] != "1" || applied[1] != "2" {
		t.Errorf("unexpected step order %v", applied)
	}
}

func TestEngineIsIdempotent(t *testing.T) {
	e := Default()
	v := newVillage(t)

	if _, err := e.Migrate(v); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	once := village.Clone(v)

	changed, err := e.Migrate(v)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if changed {
		t.Error("second run must report no change")
	}
	if !village.Equal(once, v) {
		t.Error("second run altered the village")
	}
}

func TestEngineResumesFromStoredVersion(t *testing.T) {
	var applied []string
	e := MustEngine(
		Step{Version: "1", Apply: func(*village.Village) error { applied = append(applied, "1"); return nil }},
		Step{Version: "2", Apply: func(*village.Village) error { applied = append(applied, "2"); return nil }},
	)
	v := newVillage(t)
	v.SetVersion("1")

	changed, _ := e.Migrate(v)
	if !changed || len(applied) != 1 || applied[0] != "2" {
		t.Errorf("expected only step 2, got %v", applied)
	}
}

func TestEngineLeavesUnknownVersionsAlone(t *testing.T) {
	v := newVillage(t)
	v.SetVersion("99")

	changed, err := Default().Migrate(v)
	if err != nil || changed || v.Version() != "99" {
		t.Errorf("expected untouched village, got changed=%v err=%v version=%q", changed, err, v.Version())
	}
}

func TestEngineStepFailure(t *testing.T) {
	boom := errors.New("boom")
	e := MustEngine(
		Step{Version: "1"},
		Step{Version: "2", Apply: func(*village.Village) error { return boom }},
	)
	v := newVillage(t)

	changed, err := e.Migrate(v)
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	if !changed || v.Version() != "1" {
		t.Errorf("expected partial progress to version 1, got %q", v.Version())
	}
}

func TestNewEngineRejectsBadSteps(t *testing.T) {
	if _, err := NewEngine(Step{Version: ""}); err == nil {
		t.Error("expected error for empty version")
	}
	if _, err := NewEngine(Step{Version: "1"}, Step{Version: "1"}); err == nil {
		t.Error("expected error for duplicate version")
	}
}

func TestDefaultStepsFillMissingFields(t *testing.T) {
	rec := village.Record(testsupport.VillageRecord("v1", "Ana"))
	delete(rec["playerInfo"].(map[string]any), "default_map")
	m := rec["maps"].([]any)[0].(map[string]any)
	delete(m, "level")
	delete(m, "timestamp")
	v, err := village.FromRecord("v1", rec)
	if err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}

	if _, err := Default().Migrate(v); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if v.PlayerInfo["default_map"] != float64(0) {
		t.Errorf("default_map not filled")
	}
	if v.Maps[0]["level"] != float64(1) || v.Maps[0]["timestamp"] != float64(0) {
		t.Errorf("map defaults not filled: %v", v.Maps[0])
	}
	if v.Maps[0]["gold"] != float64(1000) {
		t.Errorf("existing values must be kept")
	}
	if v.Version() != Default().Current() {
		t.Errorf("expected current version, got %q", v.Version())
	}
}

func TestNop(t *testing.T) {
	v := newVillage(t)
	if changed, err := (Nop{}).Migrate(v); changed || err != nil {
		t.Errorf("Nop must not change anything")
	}
}
