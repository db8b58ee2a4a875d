// Package pacing drives periodic signals from a polling loop.
//
// A timing.PeriodicSignal is a passive object: it never blocks and never
// calls back. A Loop is the embedding control loop that polls a signal at a
// fixed interval and turns each claimed tick into a call to a Handler.
package pacing

import (
	"time"
)

// TickInfo describes a claimed tick.
type TickInfo struct {
	Loop      string
	TickCount uint64

	// Missed is the number of periods that elapsed without being claimed
	// individually because the loop fell behind.
	Missed uint64

	Period time.Duration
	Delta  time.Duration
	Time   time.Time

	// Elapsed is the time between the start of the signal's timeline and
	// the tick.
	Elapsed time.Duration
}

// A Handler processes ticks.
type Handler interface {
	HandleTick(info TickInfo) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(info TickInfo) error

// HandleTick calls f(info).
func (f HandlerFunc) HandleTick(info TickInfo) error {
	return f(info)
}

// A TickRecorder persists ticks.
type TickRecorder interface {
	RecordTick(info TickInfo)
}

// A ProgressReporter is notified once per claimed tick.
type ProgressReporter interface {
	IncrementFinished(amount uint64)
}
