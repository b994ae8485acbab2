package migration_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/gt"
)

func TestEstimateUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		gt.Equal(t, newUseCase(repository.NewMemory()).EstimateUsage(ctx), int64(0))
	})

	t.Run("counts keys and values of every entry", func(t *testing.T) {
		store := repository.NewMemory()
		gt.NoError(t, store.Set(ctx, "ab", "cd"))
		gt.NoError(t, store.Set(ctx, "dream_1", "xyz"))
		gt.Equal(t, newUseCase(store).EstimateUsage(ctx), int64((2+2+7+3)*2))
	})

	t.Run("counts utf-16 code units", func(t *testing.T) {
		store := repository.NewMemory()
		gt.NoError(t, store.Set(ctx, "k", "ü"))
		gt.NoError(t, store.Set(ctx, "e", "🕊"))
		gt.Equal(t, newUseCase(store).EstimateUsage(ctx), int64((1+1+1+2)*2))
	})

	t.Run("enumeration failure yields zero", func(t *testing.T) {
		store := newFaultyStore(repository.NewMemory())
		gt.NoError(t, store.Set(ctx, "dream_1", "value"))
		store.keysErr = true
		gt.Equal(t, newUseCase(store).EstimateUsage(ctx), int64(0))
	})

	t.Run("read failure yields zero", func(t *testing.T) {
		store := newFaultyStore(repository.NewMemory())
		gt.NoError(t, store.Set(ctx, "dream_1", "value"))
		store.getFail["dream_1"] = true
		gt.Equal(t, newUseCase(store).EstimateUsage(ctx), int64(0))
	})
}
