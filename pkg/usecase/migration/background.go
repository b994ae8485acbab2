package migration

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
)

// Background migrates the records left out of the eager working set. It works
// through a queue in steps of YieldEvery successfully processed records and
// pauses for YieldPause between steps, so a large backlog never monopolizes
// the store.
type Background struct {
	process    func(ctx context.Context, key string) outcome
	yieldEvery int
	yieldPause time.Duration

	mu      sync.Mutex
	queue   []string
	stats   model.Result
	started time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newBackground(process func(ctx context.Context, key string) outcome, keys []string, policy Policy) *Background {
	queue := make([]string, len(keys))
	copy(queue, keys)

	return &Background{
		process:    process,
		yieldEvery: policy.YieldEvery,
		yieldPause: policy.YieldPause,
		queue:      queue,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// startBackground schedules a background run over keys, through the host idle
// primitive when one is configured and a fixed-delay timer otherwise.
func (u *UseCase) startBackground(ctx context.Context, keys []string) *Background {
	bg := newBackground(u.migrateRecord, keys, u.policy)

	u.bgMu.Lock()
	u.background = bg
	u.bgMu.Unlock()

	// the run outlives the eager call; keep values such as the logger only
	bgCtx := context.WithoutCancel(ctx)

	var scheduler IdleScheduler = TimerScheduler{Delay: u.policy.FallbackDelay}
	if u.idle != nil {
		scheduler = u.idle
	}

	logging.From(ctx).Info("background migration scheduled", "pending", len(keys))
	scheduler.RunWhenIdle(bgCtx, u.policy.IdleTimeout, bg.run)
	return bg
}

// run is the driver loop. It returns when the queue is drained, ctx ends or Stop is called.
func (b *Background) run(ctx context.Context) {
	defer close(b.done)

	logger := logging.From(ctx)
	b.mu.Lock()
	b.started = time.Now()
	b.mu.Unlock()

	for !b.stopped(ctx) {
		b.step(ctx)
		if b.Pending() == 0 {
			break
		}
		wait(ctx, b.yieldPause, b.stopCh)
	}
	if b.Pending() > 0 {
		logger.Info("background migration stopped early", "pending", b.Pending())
	}

	stats := b.Stats()
	logger.Info("background migration finished",
		"migrated", stats.Migrated,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"pending", b.Pending(),
		"duration", stats.Duration,
	)
}

// step processes queued records until yieldEvery of them succeed or the
// queue empties, and returns how many records it took off the queue.
func (b *Background) step(ctx context.Context) int {
	taken, succeeded := 0, 0
	for succeeded < b.yieldEvery {
		if b.stopped(ctx) {
			break
		}
		key, ok := b.pop()
		if !ok {
			break
		}
		taken++

		out := b.process(ctx, key)
		b.record(out)
		if out != outcomeFailed {
			succeeded++
		}
	}
	return taken
}

func (b *Background) pop() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return "", false
	}
	key := b.queue[0]
	b.queue = b.queue[1:]
	return key, true
}

func (b *Background) record(out outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch out {
	case outcomeMigrated:
		b.stats.Migrated++
	case outcomeSkipped:
		b.stats.Skipped++
	case outcomeFailed:
		b.stats.Failed++
	}
	b.stats.Duration = time.Since(b.started)
}

func (b *Background) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-b.stopCh:
		return true
	default:
		return false
	}
}

// Stop asks the run to end after the record in progress. Unprocessed records
// stay legacy and are picked up by a later migration.
func (b *Background) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Done is closed when the run has ended
func (b *Background) Done() <-chan struct{} {
	return b.done
}

// Finished reports whether the run has ended
func (b *Background) Finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the run ends or ctx is done
func (b *Background) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued records
func (b *Background) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats returns the counters accumulated so far
func (b *Background) Stats() model.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
