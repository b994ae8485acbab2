package migration_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/gt"
)

func TestPartition(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	for _, days := range []int{70, 1, 40, 60, 2, 10, 50} {
		put(t, store, fmt.Sprintf("dream_d%02d", days), daysAgo(days, "dream"))
	}
	put(t, store, "dream_undated", map[string]any{"text": "no timestamp"})

	policy := testPolicy()
	policy.EagerCount = 2
	uc := newUseCase(store, migration.WithPolicy(policy))

	eager, deferred, err := uc.PartitionForTest(ctx)
	gt.NoError(t, err)
	gt.Equal(t, eager, []string{"dream_d01", "dream_d02", "dream_d10"})
	gt.Equal(t, deferred, []string{"dream_d40", "dream_d50", "dream_d60", "dream_d70", "dream_undated"})
}

func TestPartitionZeroEagerCount(t *testing.T) {
	store := repository.NewMemory()
	put(t, store, "dream_new", daysAgo(1, "recent"))
	put(t, store, "dream_old", daysAgo(90, "old"))

	policy := testPolicy()
	policy.EagerCount = 0
	eager, deferred, err := newUseCase(store, migration.WithPolicy(policy)).PartitionForTest(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, eager, []string{"dream_new"})
	gt.Equal(t, deferred, []string{"dream_old"})
}

func legacyKeys(t *testing.T, store repository.Store, n int) []string {
	t.Helper()
	keys := make([]string, n)
	for i := range n {
		keys[i] = fmt.Sprintf("dream_bg%03d", i)
		put(t, store, keys[i], daysAgo(100+i, fmt.Sprintf("background dream %d", i)))
	}
	return keys
}

func TestBackgroundStepYields(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	keys := legacyKeys(t, store, 25)

	bg := newUseCase(store).NewBackgroundForTest(keys)
	gt.Equal(t, bg.Pending(), 25)

	gt.Equal(t, migration.StepForTest(ctx, bg), 10)
	gt.Equal(t, bg.Pending(), 15)
	gt.Equal(t, migration.StepForTest(ctx, bg), 10)
	gt.Equal(t, migration.StepForTest(ctx, bg), 5)
	gt.Equal(t, migration.StepForTest(ctx, bg), 0)

	gt.Equal(t, bg.Stats().Migrated, 25)
	for _, k := range keys {
		gt.Equal(t, getRecord(t, store, k).SchemaVersion, model.SchemaV2)
	}
}

func TestBackgroundStepDoesNotCountFailures(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	var keys []string
	for i := range 3 {
		k := fmt.Sprintf("dream_broken%d", i)
		put(t, store, k, `{"text":`)
		keys = append(keys, k)
	}
	keys = append(keys, legacyKeys(t, store, 12)...)

	bg := newUseCase(store).NewBackgroundForTest(keys)
	gt.Equal(t, migration.StepForTest(ctx, bg), 13)
	gt.Equal(t, bg.Pending(), 2)

	stats := bg.Stats()
	gt.Equal(t, stats.Failed, 3)
	gt.Equal(t, stats.Migrated, 10)
}

func TestBackgroundRunDrainsQueue(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	keys := legacyKeys(t, store, 23)
	put(t, store, "dream_gone", `[]`)
	keys = append(keys, "dream_gone", "dream_missing")

	bg := newUseCase(store).NewBackgroundForTest(keys)
	gt.False(t, bg.Finished())
	migration.RunForTest(ctx, bg)

	gt.True(t, bg.Finished())
	gt.Equal(t, bg.Pending(), 0)
	stats := bg.Stats()
	gt.Equal(t, stats.Migrated, 23)
	gt.Equal(t, stats.Failed, 1)
	gt.Equal(t, stats.Skipped, 1)
	gt.False(t, exists(t, store, "dream_gone"))
}

func TestBackgroundStopLeavesRemainderLegacy(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	keys := legacyKeys(t, store, 30)

	bg := newUseCase(store).NewBackgroundForTest(keys)
	gt.Equal(t, migration.StepForTest(ctx, bg), 10)
	bg.Stop()
	bg.Stop()
	migration.RunForTest(ctx, bg)

	gt.True(t, bg.Finished())
	gt.Equal(t, bg.Pending(), 20)
	gt.Equal(t, bg.Stats().Migrated, 10)

	for i, k := range keys {
		want := 0
		if i < 10 {
			want = model.SchemaV2
		}
		gt.Equal(t, getRecord(t, store, k).SchemaVersion, want)
	}
}

func TestBackgroundCanceledContext(t *testing.T) {
	store := repository.NewMemory()
	keys := legacyKeys(t, store, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bg := newUseCase(store).NewBackgroundForTest(keys)
	migration.RunForTest(ctx, bg)
	gt.True(t, bg.Finished())
	gt.Equal(t, bg.Pending(), 5)
}

func TestBackgroundWaitTimesOut(t *testing.T) {
	store := repository.NewMemory()
	bg := newUseCase(store).NewBackgroundForTest(legacyKeys(t, store, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gt.Error(t, bg.Wait(ctx))
}

func TestMigrateSchedulesBackgroundWithTimer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	legacyKeys(t, store, 30)
	put(t, store, "dream_recent", daysAgo(0, "today"))

	policy := testPolicy()
	policy.EagerCount = 5
	uc := newUseCase(store, migration.WithPolicy(policy))

	result, err := uc.Migrate(ctx)
	gt.NoError(t, err)
	gt.Equal(t, result.Migrated, 5)
	gt.Equal(t, result.Deferred, 26)

	bg := uc.Background()
	gt.NotNil(t, bg)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	gt.NoError(t, bg.Wait(waitCtx))
	gt.Equal(t, bg.Stats().Migrated, 26)

	needed, err := uc.Check(ctx)
	gt.NoError(t, err)
	gt.False(t, needed)
}

func TestMigrateWithoutDeferredKeysStartsNoBackground(t *testing.T) {
	store := repository.NewMemory()
	put(t, store, "dream_1", daysAgo(1, "recent"))

	uc := newUseCase(store)
	result, err := uc.Migrate(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, result.Deferred, 0)
	gt.True(t, uc.Background() == nil)
}

func TestIdleNotifier(t *testing.T) {
	waitCalled := func(t *testing.T, done <-chan struct{}) {
		t.Helper()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not invoked")
		}
	}

	t.Run("runs on idle signal", func(t *testing.T) {
		n := migration.NewIdleNotifier()
		done := make(chan struct{})
		n.RunWhenIdle(context.Background(), time.Hour, func(ctx context.Context) {
			close(done)
		})
		n.Idle()
		n.Idle()
		waitCalled(t, done)
	})

	t.Run("runs on timeout", func(t *testing.T) {
		n := migration.NewIdleNotifier()
		done := make(chan struct{})
		n.RunWhenIdle(context.Background(), time.Millisecond, func(ctx context.Context) {
			close(done)
		})
		waitCalled(t, done)
	})

	t.Run("runs once with ended context", func(t *testing.T) {
		n := migration.NewIdleNotifier()
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		var ctxErr atomic.Bool
		done := make(chan struct{})
		n.RunWhenIdle(ctx, time.Hour, func(ctx context.Context) {
			calls.Add(1)
			ctxErr.Store(ctx.Err() != nil)
			close(done)
		})
		cancel()
		waitCalled(t, done)
		gt.Equal(t, calls.Load(), int32(1))
		gt.True(t, ctxErr.Load())
	})
}

func TestTimerScheduler(t *testing.T) {
	done := make(chan struct{})
	start := time.Now()
	migration.TimerScheduler{Delay: 20 * time.Millisecond}.RunWhenIdle(context.Background(), time.Hour, func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
		gt.True(t, time.Since(start) >= 20*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
	}
}
