package pacing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/pulse/timing"
)

// ErrAlreadyRunning is returned by Run when the loop is already running.
var ErrAlreadyRunning = errors.New("loop is already running")

// Stats accumulates what a loop has observed since it was built.
type Stats struct {
	Ticks      uint64        `json:"ticks"`
	Missed     uint64        `json:"missed"`
	Restarts   uint64        `json:"restarts"`
	MinDelta   time.Duration `json:"min_delta"`
	MaxDelta   time.Duration `json:"max_delta"`
	TotalDelta time.Duration `json:"total_delta"`
}

// MeanDelta returns the average delta of the claimed ticks.
func (s Stats) MeanDelta() time.Duration {
	if s.Ticks == 0 {
		return 0
	}

	return s.TotalDelta / time.Duration(s.Ticks)
}

func (s *Stats) add(info TickInfo) {
	if s.Ticks == 0 || info.Delta < s.MinDelta {
		s.MinDelta = info.Delta
	}

	if info.Delta > s.MaxDelta {
		s.MaxDelta = info.Delta
	}

	s.Ticks++
	s.Missed += info.Missed
	s.TotalDelta += info.Delta
}

// A Loop owns a periodic signal and polls it.
//
// The signal is only touched by the goroutine calling Step or Run. Other
// goroutines observe the loop through Snapshot and Stats and can ask for a
// restart with RequestRestart.
type Loop struct {
	name         string
	signal       *timing.PeriodicSignal
	handler      Handler
	pollInterval time.Duration
	maxTicks     uint64
	waiter       Waiter
	recorders    []TickRecorder
	progress     ProgressReporter

	restartRequested atomic.Bool
	running          atomic.Bool

	lock     sync.Mutex
	snapshot timing.Snapshot
	stats    Stats
}

// Name returns the name of the loop.
func (l *Loop) Name() string {
	return l.name
}

// MaxTicks returns the number of ticks after which Run returns. Zero means
// no limit.
func (l *Loop) MaxTicks() uint64 {
	return l.maxTicks
}

// PollInterval returns the time the loop waits between two polls.
func (l *Loop) PollInterval() time.Duration {
	return l.pollInterval
}

// Snapshot returns the state of the signal as of the latest poll.
func (l *Loop) Snapshot() timing.Snapshot {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.snapshot
}

// Stats returns the statistics of the claimed ticks.
func (l *Loop) Stats() Stats {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.stats
}

// RequestRestart asks the loop to restart its signal before the next poll.
// It is safe to call from any goroutine.
func (l *Loop) RequestRestart() {
	l.restartRequested.Store(true)
}

// AddRecorder adds a recorder that receives every claimed tick. It must not
// be called while the loop is running.
func (l *Loop) AddRecorder(r TickRecorder) {
	l.recorders = append(l.recorders, r)
}

// SetProgressReporter sets the reporter notified of every claimed tick. It
// must not be called while the loop is running.
func (l *Loop) SetProgressReporter(p ProgressReporter) {
	l.progress = p
}

// Step polls the signal once. It returns whether a tick was claimed. An
// error is returned only if the handler fails.
func (l *Loop) Step() (bool, error) {
	if l.restartRequested.Swap(false) {
		l.signal.Restart()

		l.lock.Lock()
		l.stats.Restarts++
		l.lock.Unlock()

		log.Printf("loop %s: restarted", l.name)
	}

	before := l.signal.TickCount()
	if !l.signal.Poll() {
		l.publish(nil)
		return false, nil
	}

	info := TickInfo{
		Loop:      l.name,
		TickCount: l.signal.TickCount(),
		Missed:    l.signal.TickCount() - before - 1,
		Period:    l.signal.Period(),
		Delta:     l.signal.LastDelta(),
		Time:      l.signal.LastTickTime(),
		Elapsed:   l.signal.LastTickTime().Sub(l.signal.StartTime()),
	}

	l.publish(&info)

	for _, r := range l.recorders {
		r.RecordTick(info)
	}

	if l.progress != nil {
		l.progress.IncrementFinished(1)
	}

	if err := l.handler.HandleTick(info); err != nil {
		return true, fmt.Errorf("loop %s: tick %d: %w",
			l.name, info.TickCount, err)
	}

	return true, nil
}

func (l *Loop) publish(info *TickInfo) {
	snapshot := l.signal.Snapshot()

	l.lock.Lock()
	defer l.lock.Unlock()

	l.snapshot = snapshot
	if info != nil {
		l.stats.add(*info)
	}
}

// Run polls the signal until the context is done, the handler fails, or the
// maximum number of ticks has been claimed. It returns nil only in the last
// case.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	log.Printf("loop %s: running at %s with %s deltas, polling every %s",
		l.name, l.signal.Freq(), l.signal.DeltaMode(), l.pollInterval)

	err := l.run(ctx)

	stats := l.Stats()
	log.Printf("loop %s: stopped after %d ticks (%d missed periods)",
		l.name, stats.Ticks, stats.Missed)

	return err
}

func (l *Loop) run(ctx context.Context) error {
	var claimed uint64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ticked, err := l.Step()
		if err != nil {
			return err
		}

		if ticked {
			claimed++
			if l.maxTicks > 0 && claimed >= l.maxTicks {
				return nil
			}
		}

		if err := l.waiter.Wait(ctx, l.pollInterval); err != nil {
			return err
		}
	}
}
