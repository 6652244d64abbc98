package migration

import (
	"fmt"

	"github.com/goliatone/go-village-store/village"
)

// Migrator upgrades a village in place to the current schema version.
// It reports whether anything changed so the caller can re-persist.
type Migrator interface {
	Migrate(v *village.Village) (bool, error)
}

// Step upgrades a village to Version.
type Step struct {
	Version string
	Apply   func(v *village.Village) error
}

// Engine applies ordered steps, stamping the version after each one.
// Running it on an already current village is a no-op.
type Engine struct {
	steps []Step
	index map[string]int
}

// NewEngine builds an engine from steps in application order. Versions must be
// unique and non-empty.
func NewEngine(steps ...Step) (*Engine, error) {
	e := &Engine{steps: steps, index: make(map[string]int, len(steps))}
	for i, s := range steps {
		if s.Version == "" {
			return nil, fmt.Errorf("migration step %d has no version", i)
		}
		if _, dup := e.index[s.Version]; dup {
			return nil, fmt.Errorf("duplicate migration version %q", s.Version)
		}
		e.index[s.Version] = i
	}
	return e, nil
}

// MustEngine is NewEngine that panics on invalid steps.
func MustEngine(steps ...Step) *Engine {
	e, err := NewEngine(steps...)
	if err != nil {
		panic(err)
	}
	return e
}

// Current returns the version stamped by the last step, or "" when the engine
// has no steps.
func (e *Engine) Current() string {
	if len(e.steps) == 0 {
		return ""
	}
	return e.steps[len(e.steps)-1].Version
}

// Migrate applies every step after the village's current version. Villages
// stamped with a version this engine does not know are left untouched, as
// they were written by a newer server.
func (e *Engine) Migrate(v *village.Village) (bool, error) {
	start := 0
	if version := v.Version(); version != "" {
		i, known := e.index[version]
		if !known {
			return false, nil
		}
		start = i + 1
	}

	changed := false
	for _, s := range e.steps[start:] {
		if s.Apply != nil {
			if err := s.Apply(v); err != nil {
				return changed, fmt.Errorf("migrate %s to %s: %w", v.ID, s.Version, err)
			}
		}
		v.SetVersion(s.Version)
		changed = true
	}
	return changed, nil
}

// Nop never changes anything.
type Nop struct{}

// Migrate leaves v untouched.
func (Nop) Migrate(*village.Village) (bool, error) { return false, nil }
