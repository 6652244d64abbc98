package villagecache

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-village-store/village"
)

// ListSavedIDs returns the ids of the cached saves, sorted.
func (s *Store) ListSavedIDs() []string {
	return keys(s.saves)
}

// ListAllIDs returns the ids of every cached village across partitions, sorted.
func (s *Store) ListAllIDs() []string {
	ids := append(keys(s.static), keys(s.quests)...)
	ids = append(ids, keys(s.saves)...)
	sort.Strings(ids)
	return ids
}

// SaveInfo returns the summary of a cached save.
func (s *Store) SaveInfo(id string) (village.Info, error) {
	v, ok := s.saves.Load(id)
	if !ok {
		return village.Info{}, village.NotFound(id)
	}
	return v.Info(), nil
}

// AllSavesInfo returns the summary of every cached save, ordered by id.
func (s *Store) AllSavesInfo() []village.Info {
	ids := s.ListSavedIDs()
	infos := make([]village.Info, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.saves.Load(id); ok {
			infos = append(infos, v.Info())
		}
	}
	return infos
}

// Partition returns a point-in-time copy of the id to village mapping of p.
// The villages themselves are shared with the cache.
func (s *Store) Partition(p village.Partition) map[string]*village.Village {
	var src *xsync.MapOf[string, *village.Village]
	switch p {
	case village.PartitionStatic:
		src = s.static
	case village.PartitionQuest:
		src = s.quests
	case village.PartitionSave:
		src = s.saves
	default:
		return map[string]*village.Village{}
	}

	out := make(map[string]*village.Village, src.Size())
	src.Range(func(id string, v *village.Village) bool {
		out[id] = v
		return true
	})
	return out
}

// Seed returns a copy of the template new villages are created from, or nil.
func (s *Store) Seed() *village.Village {
	return village.Clone(s.seed.Load())
}

func keys(m *xsync.MapOf[string, *village.Village]) []string {
	ids := make([]string, 0, m.Size())
	m.Range(func(id string, _ *village.Village) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}
