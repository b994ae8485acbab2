package migration

import (
	"context"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Migrate runs the eager migration: it relieves capacity pressure, migrates the
// recent working set in recency order and hands the remaining candidates to a
// background run. Per-record failures are counted, never returned; only a
// failure to enumerate the store is an error.
//
// Migrate must not run concurrently with another Migrate on the same store.
func (u *UseCase) Migrate(ctx context.Context) (*model.Result, error) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, goerr.Wrap(ErrMigrationRunning, "eager migration in progress")
	}
	defer u.running.Store(false)

	if bg := u.Background(); bg != nil && !bg.Finished() {
		return nil, goerr.Wrap(ErrMigrationRunning, "background migration in progress", goerr.V("pending", bg.Pending()))
	}

	start := time.Now()
	logger := logging.From(ctx)
	result := &model.Result{}

	usage := u.EstimateUsage(ctx)
	if limit := u.policy.HighWaterBytes(); usage > limit {
		logger.Warn("storage usage above high-water mark, evicting",
			"usage", usage,
			"limit", limit,
			"keep", u.policy.EvictionKeepCount,
		)
		evicted, err := u.Evict(ctx, u.policy.EvictionKeepCount)
		if err != nil {
			logger.Warn("eviction failed", "error", err)
		}
		result.Evicted = evicted
	}

	candidates, err := u.sortedCandidates(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list migration candidates")
	}
	eager, deferred := u.partition(candidates)

	for _, key := range eager {
		switch u.migrateRecord(ctx, key) {
		case outcomeMigrated:
			result.Migrated++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	if len(deferred) > 0 {
		u.startBackground(ctx, deferred)
		result.Deferred = len(deferred)
	}

	logger.Info("eager migration finished",
		"migrated", result.Migrated,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"deferred", result.Deferred,
		"evicted", result.Evicted,
		"duration", result.Duration,
	)
	return result, nil
}
