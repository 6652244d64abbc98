package migration

import (
	"github.com/goliatone/go-village-store/village"
)

// LegacyVersion is the version assumed by documents written before versions
// were stored.
const LegacyVersion = "0.02a"

// DefaultSteps fills the fields the store reads itself, so projections never
// trip over a village saved by an older client.
func DefaultSteps() []Step {
	return []Step{
		{Version: LegacyVersion},
		{Version: "0.03a", Apply: fillDefaults},
	}
}

// Default returns an engine running DefaultSteps.
func Default() *Engine {
	return MustEngine(DefaultSteps()...)
}

var mapDefaults = map[string]any{
	"xp":        float64(0),
	"level":     float64(1),
	"gold":      float64(0),
	"wood":      float64(0),
	"timestamp": float64(0),
}

func fillDefaults(v *village.Village) error {
	if v.PlayerInfo == nil {
		v.PlayerInfo = map[string]any{}
	}
	setIfMissing(v.PlayerInfo, "pid", v.ID)
	setIfMissing(v.PlayerInfo, "default_map", float64(0))

	if v.PrivateState == nil {
		v.PrivateState = map[string]any{}
	}
	setIfMissing(v.PrivateState, "timeStampDartsReset", float64(0))

	for _, m := range v.Maps {
		for key, value := range mapDefaults {
			setIfMissing(m, key, value)
		}
	}
	return nil
}

func setIfMissing(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
