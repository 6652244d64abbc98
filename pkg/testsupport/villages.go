package testsupport

import (
	"path/filepath"
	"testing"
)

// Reserved NPC ids used by the static fixture tree.
const (
	NPCPrimaryID   = "100000030"
	NPCSecondaryID = "100000031"
	StaticID       = "100000045"
	QuestID        = "Q0001"
)

// MapRecord returns a valid map entry with the given resources.
func MapRecord(xp, level, gold float64) map[string]any {
	return map[string]any{
		"gold":      gold,
		"wood":      float64(500),
		"oil":       float64(250),
		"steel":     float64(125),
		"xp":        xp,
		"level":     level,
		"timestamp": float64(0),
		"items":     map[string]any{},
	}
}

// VillageRecord returns a valid raw village record for pid.
func VillageRecord(pid, name string) map[string]any {
	return map[string]any{
		"playerInfo": map[string]any{
			"pid":            pid,
			"name":           name,
			"pic":            "https://img.example/" + pid + ".png",
			"default_map":    float64(0),
			"last_logged_in": float64(0),
		},
		"maps":         []any{MapRecord(10, 2, 1000)},
		"privateState": map[string]any{"timeStampDartsReset": float64(0)},
	}
}

// SeedRecord returns the template new villages are copied from.
func SeedRecord() map[string]any {
	rec := VillageRecord("0", "Player")
	rec["maps"] = []any{MapRecord(0, 1, 1000)}
	return rec
}

// Layout is an on-disk tree mirroring the server data directories.
type Layout struct {
	Root        string
	VillagesDir string
	QuestsDir   string
	SavesDir    string
	SeedFile    string
}

// WriteLayout writes the seed template, static villages and one quest under
// root. The villages directory also holds a non-JSON file the loader must skip.
func WriteLayout(t testing.TB, root string) Layout {
	t.Helper()

	l := Layout{
		Root:        root,
		VillagesDir: filepath.Join(root, "villages"),
		QuestsDir:   filepath.Join(root, "villages", "quest"),
		SavesDir:    filepath.Join(root, "saves"),
	}
	l.SeedFile = filepath.Join(l.VillagesDir, "initial.json")

	WriteJSON(t, l.SeedFile, SeedRecord())
	WriteJSON(t, filepath.Join(l.VillagesDir, NPCPrimaryID+".json"), VillageRecord(NPCPrimaryID, "Mitchell"))
	WriteJSON(t, filepath.Join(l.VillagesDir, NPCSecondaryID+".json"), VillageRecord(NPCSecondaryID, "Ruby"))
	WriteJSON(t, filepath.Join(l.VillagesDir, StaticID+".json"), VillageRecord(StaticID, "Rosa"))
	WriteFile(t, filepath.Join(l.VillagesDir, "README.txt"), []byte("not a village"))
	WriteJSON(t, filepath.Join(l.QuestsDir, QuestID+".json"), VillageRecord(QuestID, "Quest"))

	return l
}
