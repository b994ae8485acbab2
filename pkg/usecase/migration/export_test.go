package migration

import (
	"context"

	"github.com/m-mizutani/dreamlog/pkg/model"
)

// ConvertAnalysisWithErrorForTest exposes the fallback reason of ConvertAnalysis.
func ConvertAnalysisWithErrorForTest(raw []byte, text string, lang model.Lang, timestamp string) (*model.Analysis, error) {
	return convertAnalysis(raw, text, lang, timestamp)
}

// PartitionForTest returns the eager and background key sets Migrate would use.
func (u *UseCase) PartitionForTest(ctx context.Context) ([]string, []string, error) {
	candidates, err := u.sortedCandidates(ctx)
	if err != nil {
		return nil, nil, err
	}
	eager, deferred := u.partition(candidates)
	return eager, deferred, nil
}

// NewBackgroundForTest builds an unscheduled background run over keys.
func (u *UseCase) NewBackgroundForTest(keys []string) *Background {
	return newBackground(u.migrateRecord, keys, u.policy)
}

// StepForTest runs a single step of b.
func StepForTest(ctx context.Context, b *Background) int {
	return b.step(ctx)
}

// RunForTest drives b to completion on the calling goroutine.
func RunForTest(ctx context.Context, b *Background) {
	b.run(ctx)
}
