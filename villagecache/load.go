package villagecache

import (
	"context"
	"path/filepath"

	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/internal/flatfile"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// LoadReport summarizes a bulk load.
type LoadReport struct {
	// Source is the backend the records were read from.
	Source    string
	Loaded    int
	Migrated  int
	Failed    int
	FailedIDs []string
}

// LoadAll reads every saved village from the primary backend into the cache.
// Records that cannot be read, fail validation or fail to migrate are logged
// and counted; they never abort the load. Migrated records are saved again.
// When the primary cannot list its records at all, the fallback is read
// instead.
func (s *Store) LoadAll(ctx context.Context) (LoadReport, error) {
	source := s.primary
	entries, err := s.primary.LoadAll(ctx)
	if err != nil {
		if s.fallback == nil {
			return LoadReport{Source: s.primary.Name()}, unavailable(s.primary.Name(), err)
		}
		s.logger.Warn("primary bulk load failed, reading fallback",
			zap.String("backend", s.primary.Name()),
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		source = s.fallback
		if entries, err = s.fallback.LoadAll(ctx); err != nil {
			return LoadReport{Source: s.fallback.Name()}, unavailable(s.fallback.Name(), err)
		}
	}

	report := LoadReport{Source: source.Name()}
	for _, e := range entries {
		v, changed, err := s.entryVillage(e)
		if err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			s.logger.Warn("skipping village record",
				zap.String("village_id", e.ID),
				zap.String("backend", source.Name()),
				zap.Error(err),
			)
			continue
		}

		s.saves.Store(e.ID, v)
		report.Loaded++

		if changed {
			report.Migrated++
			if err := s.persist(ctx, e.ID, v); err != nil {
				s.logger.Warn("re-save after migration failed", zap.String("village_id", e.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("saves loaded",
		zap.String("backend", report.Source),
		zap.Int("loaded", report.Loaded),
		zap.Int("migrated", report.Migrated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Store) entryVillage(e storage.Entry) (*village.Village, bool, error) {
	if e.Err != nil {
		return nil, false, e.Err
	}
	return s.prepare(e.ID, e.Record)
}

// StaticPaths locates the read-only village data on disk.
type StaticPaths struct {
	VillagesDir string
	QuestsDir   string
	SeedFile    string
}

// LoadStatic reads the seed template, the static villages and the quests.
// A missing or invalid seed and an unreadable villages directory are fatal.
// A missing quests directory is logged and skipped.
func (s *Store) LoadStatic(ctx context.Context, paths StaticPaths) (LoadReport, error) {
	report := LoadReport{Source: flatfile.Name}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	seedRec, err := flatfile.ReadRecord(paths.SeedFile)
	if err != nil {
		return report, errors.Wrap(err, errors.CategoryInternal, "read seed template").
			WithMetadata(map[string]any{"path": paths.SeedFile})
	}
	seed, err := village.FromRecord(filepath.Base(paths.SeedFile), seedRec)
	if err != nil {
		return report, err
	}
	s.seed.Store(seed)

	entries, err := flatfile.ReadDir(paths.VillagesDir, filepath.Base(paths.SeedFile))
	if err != nil {
		return report, err
	}
	s.fill(s.static, village.PartitionStatic, entries, &report)

	if paths.QuestsDir != "" {
		entries, err := flatfile.ReadDir(paths.QuestsDir)
		if err != nil {
			s.logger.Warn("quests not loaded", zap.String("dir", paths.QuestsDir), zap.Error(err))
		} else {
			s.fill(s.quests, village.PartitionQuest, entries, &report)
		}
	}

	s.logger.Info("static villages loaded",
		zap.Int("static", s.static.Size()),
		zap.Int("quests", s.quests.Size()),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Store) fill(dst *xsync.MapOf[string, *village.Village], p village.Partition, entries []storage.Entry, report *LoadReport) {
	for _, e := range entries {
		v, _, err := s.entryVillage(e)
		if err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			s.logger.Warn("skipping village file",
				zap.String("partition", string(p)),
				zap.String("village_id", e.ID),
				zap.Error(err),
			)
			continue
		}
		dst.Store(e.ID, v)
		report.Loaded++
	}
}
