package pacing

import (
	"context"
	"time"

	"github.com/sarchlab/pulse/timing"
)

// A Waiter pauses a loop between two polls.
type Waiter interface {
	// Wait returns after d has passed or with ctx.Err() when ctx is done
	// first.
	Wait(ctx context.Context, d time.Duration) error
}

// TimerWaiter waits on real timers.
type TimerWaiter struct{}

// Wait blocks for d.
func (TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ManualWaiter advances a manual clock instead of waiting, so loops can be
// replayed deterministically and instantly.
type ManualWaiter struct {
	Clock *timing.ManualClock
}

// Wait advances the clock by d.
func (w ManualWaiter) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.Clock.Advance(d)

	return nil
}
