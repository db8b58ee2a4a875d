package timing

import (
	"errors"
	"fmt"
	"log"
)

// ErrTimeModelUnsupported is returned when a signal is configured with a
// time model that is not implemented.
var ErrTimeModelUnsupported = errors.New("time model not supported")

// SignalBuilder can build periodic signals.
type SignalBuilder struct {
	freq      Freq
	deltaMode DeltaMode
	timeModel TimeModel
	clock     Clock
}

// MakeSignalBuilder creates a builder with default parameters: 1Hz, measured
// deltas, realtime, and the real clock.
func MakeSignalBuilder() SignalBuilder {
	return SignalBuilder{
		freq:      1 * Hz,
		deltaMode: MeasuredDelta,
		timeModel: Realtime,
		clock:     RealClock{},
	}
}

// WithFreq sets the tick frequency.
func (b SignalBuilder) WithFreq(freq Freq) SignalBuilder {
	b.freq = freq
	return b
}

// WithDeltaMode sets how deltas are reported.
func (b SignalBuilder) WithDeltaMode(mode DeltaMode) SignalBuilder {
	b.deltaMode = mode
	return b
}

// WithTimeModel sets the time model.
func (b SignalBuilder) WithTimeModel(model TimeModel) SignalBuilder {
	b.timeModel = model
	return b
}

// WithClock sets the clock that the signal samples.
func (b SignalBuilder) WithClock(clock Clock) SignalBuilder {
	b.clock = clock
	return b
}

func (b SignalBuilder) validate() error {
	if err := b.freq.Validate(); err != nil {
		return err
	}

	switch b.deltaMode {
	case MeasuredDelta, PerfectDelta:
	default:
		return fmt.Errorf("unknown delta mode %d", b.deltaMode)
	}

	switch b.timeModel {
	case Realtime:
	case TickLatched:
		return fmt.Errorf("%w: %s", ErrTimeModelUnsupported, b.timeModel)
	default:
		return fmt.Errorf("%w: %d", ErrTimeModelUnsupported, b.timeModel)
	}

	if b.clock == nil {
		return errors.New("clock is not set")
	}

	return nil
}

// TryBuild creates a signal, or returns an error if the parameters are
// invalid. The start time is sampled from the clock.
func (b SignalBuilder) TryBuild() (*PeriodicSignal, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	s := &PeriodicSignal{
		clock:     b.clock,
		freq:      b.freq,
		period:    b.freq.Period(),
		deltaMode: b.deltaMode,
		timeModel: b.timeModel,
	}
	s.Restart()

	return s, nil
}

// Build creates a signal. It panics if the parameters are invalid.
func (b SignalBuilder) Build() *PeriodicSignal {
	s, err := b.TryBuild()
	if err != nil {
		log.Panic(err)
	}

	return s
}
