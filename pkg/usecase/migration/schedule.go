package migration

import (
	"context"
	"time"
)

// IdleScheduler runs a callback when the host is otherwise idle, but no later
// than timeout. fn must be invoked exactly once; if ctx ends first, fn is
// invoked with the ended context so it can clean up.
type IdleScheduler interface {
	RunWhenIdle(ctx context.Context, timeout time.Duration, fn func(ctx context.Context))
}

// TimerScheduler is the fallback when the host offers no idle signal: it runs
// fn after a fixed delay and ignores the idle timeout.
type TimerScheduler struct {
	Delay time.Duration
}

func (s TimerScheduler) RunWhenIdle(ctx context.Context, _ time.Duration, fn func(ctx context.Context)) {
	go func() {
		wait(ctx, s.Delay, nil)
		fn(ctx)
	}()
}

// IdleNotifier is an IdleScheduler driven by the host calling Idle whenever
// it has nothing else to do.
type IdleNotifier struct {
	idle chan struct{}
}

// NewIdleNotifier creates an IdleNotifier with no pending idle signal
func NewIdleNotifier() *IdleNotifier {
	return &IdleNotifier{idle: make(chan struct{}, 1)}
}

// Idle signals that the host is idle. Signals do not accumulate.
func (n *IdleNotifier) Idle() {
	select {
	case n.idle <- struct{}{}:
	default:
	}
}

func (n *IdleNotifier) RunWhenIdle(ctx context.Context, timeout time.Duration, fn func(ctx context.Context)) {
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-n.idle:
		case <-timer.C:
		case <-ctx.Done():
		}
		fn(ctx)
	}()
}

// wait blocks for d, or until ctx or stop ends.
func wait(ctx context.Context, d time.Duration, stop <-chan struct{}) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-stop:
	}
}
