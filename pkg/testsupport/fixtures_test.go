package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "village.json")
	WriteJSON(t, path, VillageRecord("abc", "Ana"))

	var got map[string]any
	LoadFixtureJSON(t, path, &got)

	info, ok := got["playerInfo"].(map[string]any)
	if !ok {
		t.Fatalf("expected playerInfo mapping, got %T", got["playerInfo"])
	}
	if info["pid"] != "abc" || info["name"] != "Ana" {
		t.Errorf("unexpected playerInfo: %v", info)
	}
}

func TestWriteJSONUsesFourSpaceIndent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.json")
	WriteJSON(t, path, map[string]any{"a": 1})

	data := LoadFixture(t, path)
	if string(data) != "{\n    \"a\": 1\n}" {
		t.Errorf("unexpected layout: %q", data)
	}
}

func TestWriteLayout(t *testing.T) {
	l := WriteLayout(t, t.TempDir())

	for _, path := range []string{
		l.SeedFile,
		filepath.Join(l.VillagesDir, NPCPrimaryID+".json"),
		filepath.Join(l.VillagesDir, StaticID+".json"),
		filepath.Join(l.QuestsDir, QuestID+".json"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	if _, err := os.Stat(l.SavesDir); !os.IsNotExist(err) {
		t.Errorf("saves dir should be left for the store to create, got %v", err)
	}
}
