package timing

import (
	"fmt"
	"strings"
	"time"
)

// DeltaMode decides what LastDelta reports after a tick is claimed.
type DeltaMode int

const (
	// MeasuredDelta reports the time that actually passed between the two
	// most recently claimed ticks.
	MeasuredDelta DeltaMode = iota

	// PerfectDelta always reports exactly one period, regardless of jitter.
	// Two systems stepping with the same frequency (e.g., client prediction
	// and server reconciliation) then use identical step sizes.
	PerfectDelta
)

func (m DeltaMode) String() string {
	switch m {
	case MeasuredDelta:
		return "measured"
	case PerfectDelta:
		return "perfect"
	default:
		return "unknown"
	}
}

// ParseDeltaMode converts "measured" or "perfect" into a DeltaMode.
func ParseDeltaMode(s string) (DeltaMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "measured":
		return MeasuredDelta, nil
	case "perfect":
		return PerfectDelta, nil
	default:
		return 0, fmt.Errorf("unknown delta mode %q", s)
	}
}

// TimeModel decides how a signal perceives time.
type TimeModel int

const (
	// Realtime samples the clock on every call.
	Realtime TimeModel = iota

	// TickLatched would make all calls within one tick observe the same
	// instant. It is not supported yet and signals refuse to be built with
	// it.
	TickLatched
)

func (m TimeModel) String() string {
	switch m {
	case Realtime:
		return "realtime"
	case TickLatched:
		return "tick_latched"
	default:
		return "unknown"
	}
}

// A PeriodicSignal tells its owner, on every poll, whether a fixed-rate tick
// is due.
//
// Ticks are laid out on a timeline that starts at the start time: tick n is
// due at start + n*period. A poll computes which slot the current instant
// falls into and compares it with the last claimed slot. Missed ticks are
// never replayed; the tick count jumps straight to the latest slot.
//
// A PeriodicSignal is not safe for concurrent use. It never blocks, never
// starts goroutines and never calls back into the caller.
type PeriodicSignal struct {
	clock     Clock
	freq      Freq
	period    time.Duration
	deltaMode DeltaMode
	timeModel TimeModel

	startTime          time.Time
	tickCount          uint64
	lastTickTime       time.Time
	lastDelta          time.Duration
	progressAtLastPoll float64
}

// NewPeriodicSignal creates a signal that runs on the real clock. It panics
// if the frequency is not valid.
func NewPeriodicSignal(freq Freq, mode DeltaMode) *PeriodicSignal {
	return MakeSignalBuilder().
		WithFreq(freq).
		WithDeltaMode(mode).
		Build()
}

// Restart resets the signal as if it had just been created. The frequency
// and the modes are kept.
func (s *PeriodicSignal) Restart() {
	s.startTime = s.clock.Now()
	s.tickCount = 0
	s.lastTickTime = s.startTime
	s.lastDelta = 0
	s.progressAtLastPoll = 0
}

// Poll returns true if at least one new tick has become due since the last
// claimed tick, and claims it. When the caller has fallen behind by several
// periods, Poll still returns true only once and the tick count catches up
// to the latest due tick.
func (s *PeriodicSignal) Poll() bool {
	now := s.clock.Now()
	candidate := s.slotAt(now)

	s.progressAtLastPoll = s.CycleProgressAt(now)

	if candidate <= s.tickCount {
		return false
	}

	s.tickCount = candidate

	switch s.deltaMode {
	case PerfectDelta:
		s.lastDelta = s.period
	default:
		s.lastDelta = now.Sub(s.lastTickTime)
	}

	s.lastTickTime = now

	return true
}

// IsDue reports whether Poll would claim a tick now. It does not change the
// state of the signal.
func (s *PeriodicSignal) IsDue() bool {
	return s.slotAt(s.clock.Now()) > s.tickCount
}

// LastDelta returns the delta recorded by the most recent claimed tick, or 0
// if no tick has been claimed since creation or the last restart.
func (s *PeriodicSignal) LastDelta() time.Duration {
	return s.lastDelta
}

// CycleProgress returns the normalized position in [0,1] within the current
// period.
//
// The value is derived from the clock only. If a new period has started but
// has not been claimed with Poll yet, the value wraps from near 1 back to
// near 0. Use CycleProgressClamped to avoid that surprise.
func (s *PeriodicSignal) CycleProgress() float64 {
	return s.CycleProgressAt(s.clock.Now())
}

// CycleProgressAt returns the cycle progress at the given instant.
func (s *PeriodicSignal) CycleProgressAt(t time.Time) float64 {
	pos := t.Sub(s.startTime) % s.period
	return clamp01(float64(pos) / float64(s.period))
}

// CycleProgressClamped is like CycleProgress but returns exactly 1 while a
// tick is due and unclaimed, so the progress never appears to go backward
// before the caller has polled.
func (s *PeriodicSignal) CycleProgressClamped() float64 {
	now := s.clock.Now()
	if s.slotAt(now) > s.tickCount {
		return 1
	}

	return s.CycleProgressAt(now)
}

// ProgressAtLastPoll returns the cycle progress sampled by the most recent
// call to Poll.
func (s *PeriodicSignal) ProgressAtLastPoll() float64 {
	return s.progressAtLastPoll
}

// TickCount returns the number of periods claimed so far.
func (s *PeriodicSignal) TickCount() uint64 {
	return s.tickCount
}

// Freq returns the frequency of the signal.
func (s *PeriodicSignal) Freq() Freq {
	return s.freq
}

// Period returns the time between two nominal ticks.
func (s *PeriodicSignal) Period() time.Duration {
	return s.period
}

// DeltaMode returns how deltas are reported.
func (s *PeriodicSignal) DeltaMode() DeltaMode {
	return s.deltaMode
}

// TimeModel returns how the signal perceives time.
func (s *PeriodicSignal) TimeModel() TimeModel {
	return s.timeModel
}

// StartTime returns the instant the timeline starts at.
func (s *PeriodicSignal) StartTime() time.Time {
	return s.startTime
}

// LastTickTime returns the instant of the most recent claimed tick.
func (s *PeriodicSignal) LastTickTime() time.Time {
	return s.lastTickTime
}

// NextTickTime returns the instant the tick after the last claimed one
// becomes due.
func (s *PeriodicSignal) NextTickTime() time.Time {
	return s.startTime.Add(time.Duration(s.tickCount+1) * s.period)
}

// slotAt returns the number of whole periods between the start time and t.
func (s *PeriodicSignal) slotAt(t time.Time) uint64 {
	elapsed := t.Sub(s.startTime)
	if elapsed < 0 {
		return 0
	}

	return uint64(elapsed / s.period)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
