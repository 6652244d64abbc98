package flatfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// SaveSuffix is appended to the village id to form its file name.
const SaveSuffix = ".save.json"

// Name identifies this backend in logs and errors.
const Name = "file"

var _ storage.Backend = (*Backend)(nil)

// Backend stores one indented JSON file per village.
type Backend struct {
	dir string
}

// New returns a Backend rooted at dir. The directory is created on first write.
func New(dir string) *Backend {
	return &Backend{dir: dir}
}

// Dir returns the directory holding save files.
func (b *Backend) Dir() string { return b.dir }

func (b *Backend) Name() string { return Name }

// Ensure creates the save directory.
func (b *Backend) Ensure() error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

func (b *Backend) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return "", errors.New(fmt.Sprintf("invalid village id %q", id), errors.CategoryBadInput)
	}
	return filepath.Join(b.dir, id+SaveSuffix), nil
}

func (b *Backend) LoadOne(ctx context.Context, id string) (village.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}
	path, err := b.path(id)
	if err != nil {
		return nil, village.NotFound(id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, village.NotFound(id)
		}
		return nil, village.BackendUnavailable(Name, err)
	}
	return ParseRecord(id, data)
}

// LoadAll reads every save file in the directory. Entries are keyed by
// playerInfo.pid, or by the file name when the save has none. A missing
// directory is an empty store.
func (b *Backend) LoadAll(ctx context.Context) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, village.BackendUnavailable(Name, err)
	}

	files, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, village.BackendUnavailable(Name, err)
	}

	entries := make([]storage.Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), SaveSuffix) {
			continue
		}
		id := strings.TrimSuffix(f.Name(), SaveSuffix)
		rec, err := ReadRecord(filepath.Join(b.dir, f.Name()))
		if pid, ok := PlayerID(rec); ok && err == nil {
			id = pid
		}
		entries = append(entries, storage.Entry{ID: id, Record: rec, Err: err})
	}
	return entries, nil
}

// Store writes v to <dir>/<id>.save.json through a temporary file so a failed
// write never truncates the previous save.
func (b *Backend) Store(ctx context.Context, id string, v *village.Village) error {
	if err := ctx.Err(); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	path, err := b.path(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return village.SerializationError(id, err)
	}

	if err := b.Ensure(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+id+".*.tmp")
	if err != nil {
		return village.BackendUnavailable(Name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return village.BackendUnavailable(Name, err)
	}
	if err := tmp.Close(); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return village.BackendUnavailable(Name, err)
	}
	return nil
}

// IDs lists the ids of every save file, sorted.
func (b *Backend) IDs() ([]string, error) {
	files, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, village.BackendUnavailable(Name, err)
	}
	var ids []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), SaveSuffix) {
			ids = append(ids, strings.TrimSuffix(f.Name(), SaveSuffix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
