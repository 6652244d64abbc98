package flatfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// SeedFileName is the template new villages are copied from. It lives in the
// static villages directory but is not itself a static village.
const SeedFileName = "initial.json"

// ParseRecord decodes a JSON village record. id is used for error reporting.
func ParseRecord(id string, data []byte) (village.Record, error) {
	var rec village.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, village.SerializationError(id, err)
	}
	if rec == nil {
		return nil, village.SerializationError(id, fmt.Errorf("empty document"))
	}
	return rec, nil
}

// ReadRecord reads and decodes a single JSON village file.
func ReadRecord(path string) (village.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}
	return ParseRecord(filepath.Base(path), data)
}

// ReadDir loads every *.json village in dir, keyed by playerInfo.pid. Files
// named in skip and sub-directories are ignored. Entries are sorted by file
// name so repeated loads are deterministic.
func ReadDir(dir string, skip ...string) ([]storage.Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}

	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var entries []storage.Entry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || skipped[name] || !strings.HasSuffix(name, ".json") {
			continue
		}

		rec, err := ReadRecord(filepath.Join(dir, name))
		if err != nil {
			entries = append(entries, storage.Entry{ID: name, Err: err})
			continue
		}

		id, ok := PlayerID(rec)
		if !ok {
			entries = append(entries, storage.Entry{
				ID:  name,
				Err: village.InvalidRecord(name, fmt.Errorf("playerInfo.pid is missing")),
			})
			continue
		}
		entries = append(entries, storage.Entry{ID: id, Record: rec})
	}
	return entries, nil
}

// PlayerID reads playerInfo.pid, accepting string and numeric ids.
func PlayerID(rec village.Record) (string, bool) {
	info, ok := rec["playerInfo"].(map[string]any)
	if !ok {
		return "", false
	}
	switch pid := info["pid"].(type) {
	case string:
		return pid, pid != ""
	case float64:
		return strconv.FormatFloat(pid, 'f', -1, 64), true
	}
	return "", false
}
