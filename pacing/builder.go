package pacing

import (
	"log"
	"time"

	"github.com/sarchlab/pulse/timing"
)

// DefaultPollInterval is the time a loop waits between two polls unless
// configured otherwise.
const DefaultPollInterval = time.Millisecond

// LoopBuilder can build loops.
type LoopBuilder struct {
	name         string
	signal       *timing.PeriodicSignal
	handler      Handler
	pollInterval time.Duration
	maxTicks     uint64
	waiter       Waiter
	recorders    []TickRecorder
	progress     ProgressReporter
}

// MakeLoopBuilder creates a LoopBuilder with default parameters.
func MakeLoopBuilder() LoopBuilder {
	return LoopBuilder{
		name:         "Loop",
		pollInterval: DefaultPollInterval,
		waiter:       TimerWaiter{},
	}
}

// WithName sets the name of the loop.
func (b LoopBuilder) WithName(name string) LoopBuilder {
	b.name = name
	return b
}

// WithSignal sets the signal that the loop polls. The loop takes ownership
// of the signal.
func (b LoopBuilder) WithSignal(s *timing.PeriodicSignal) LoopBuilder {
	b.signal = s
	return b
}

// WithHandler sets the handler that is called on every claimed tick.
func (b LoopBuilder) WithHandler(h Handler) LoopBuilder {
	b.handler = h
	return b
}

// WithPollInterval sets the time to wait between two polls.
func (b LoopBuilder) WithPollInterval(d time.Duration) LoopBuilder {
	b.pollInterval = d
	return b
}

// WithMaxTicks makes Run return after n claimed ticks.
func (b LoopBuilder) WithMaxTicks(n uint64) LoopBuilder {
	b.maxTicks = n
	return b
}

// WithWaiter sets how the loop waits between two polls.
func (b LoopBuilder) WithWaiter(w Waiter) LoopBuilder {
	b.waiter = w
	return b
}

// WithRecorder adds a tick recorder.
func (b LoopBuilder) WithRecorder(r TickRecorder) LoopBuilder {
	b.recorders = append(b.recorders[:len(b.recorders):len(b.recorders)], r)
	return b
}

// WithProgressReporter sets the reporter notified of every claimed tick.
func (b LoopBuilder) WithProgressReporter(p ProgressReporter) LoopBuilder {
	b.progress = p
	return b
}

func (b LoopBuilder) parametersMustBeValid() {
	if b.signal == nil {
		log.Panic("loop signal is not set")
	}

	if b.pollInterval < 0 {
		log.Panic("poll interval cannot be negative")
	}

	if b.waiter == nil {
		log.Panic("loop waiter is not set")
	}
}

// Build creates the loop.
func (b LoopBuilder) Build() *Loop {
	b.parametersMustBeValid()

	handler := b.handler
	if handler == nil {
		handler = HandlerFunc(func(TickInfo) error { return nil })
	}

	l := &Loop{
		name:         b.name,
		signal:       b.signal,
		handler:      handler,
		pollInterval: b.pollInterval,
		maxTicks:     b.maxTicks,
		waiter:       b.waiter,
		recorders:    b.recorders,
		progress:     b.progress,
	}
	l.publish(nil)

	return l
}
