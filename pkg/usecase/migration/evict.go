package migration

import (
	"context"

	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Evict deletes every candidate record older than the keepCount newest ones
// and returns how many were deleted. A key that cannot be deleted is logged
// and left in place.
func (u *UseCase) Evict(ctx context.Context, keepCount int) (int, error) {
	if keepCount <= 0 {
		return 0, goerr.Wrap(ErrInvalidKeepCount, "cannot evict", goerr.V("keep_count", keepCount))
	}

	candidates, err := u.sortedCandidates(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) <= keepCount {
		return 0, nil
	}

	logger := logging.From(ctx)
	removed := 0
	for _, c := range candidates[keepCount:] {
		if err := u.store.Remove(ctx, c.key); err != nil {
			logger.Warn("failed to evict record", "key", c.key, "error", err)
			continue
		}
		removed++
	}

	logger.Info("evicted old records",
		"removed", removed,
		"kept", keepCount,
		"candidates", len(candidates),
	)
	return removed, nil
}
