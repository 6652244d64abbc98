package villagecache

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-village-store/internal/logging"
	"github.com/goliatone/go-village-store/storage"
	"github.com/goliatone/go-village-store/village"
)

// CopyReport summarizes a backend to backend copy.
type CopyReport struct {
	From       string
	To         string
	Copied     int
	Skipped    int
	Failed     int
	SkippedIDs []string
	FailedIDs  []string
}

// Copy writes every valid record of from into to. Records that fail
// validation are skipped; records that cannot be read or written are counted
// as failed. Neither aborts the copy. Only a failure to list from is returned.
func Copy(ctx context.Context, from, to storage.Backend, logger *zap.Logger) (CopyReport, error) {
	logger = logging.OrNop(logger)
	report := CopyReport{From: from.Name(), To: to.Name()}

	entries, err := from.LoadAll(ctx)
	if err != nil {
		return report, unavailable(from.Name(), err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if e.Err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			logger.Warn("record not readable", zap.String("village_id", e.ID), zap.Error(e.Err))
			continue
		}

		v, err := village.FromRecord(e.ID, e.Record)
		if err != nil {
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, e.ID)
			logger.Warn("invalid record skipped", zap.String("village_id", e.ID), zap.Error(err))
			continue
		}

		if err := to.Store(ctx, e.ID, v); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			logger.Error("record not copied", zap.String("village_id", e.ID), zap.Error(err))
			continue
		}
		report.Copied++
		logger.Debug("record copied", zap.String("village_id", e.ID), zap.Any("name", v.PlayerInfo["name"]))
	}

	logger.Info("copy finished",
		zap.String("from", report.From),
		zap.String("to", report.To),
		zap.Int("copied", report.Copied),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
