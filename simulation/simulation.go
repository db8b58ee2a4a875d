// Package simulation wires pacing loops, the data recorder and the monitor
// into a single run.
package simulation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sarchlab/pulse/datarecording"
	"github.com/sarchlab/pulse/monitoring"
	"github.com/sarchlab/pulse/pacing"
	"github.com/sarchlab/pulse/timing"
)

// A Simulation groups the loops of a run with the services that observe
// them.
type Simulation struct {
	id    string
	clock timing.Clock

	dataRecorder datarecording.DataRecorder
	runRecorder  *datarecording.RunRecorder
	monitor      *monitoring.Monitor

	loops         []*pacing.Loop
	loopNameIndex map[string]int
	progressBars  []*monitoring.ProgressBar
}

// ID returns the unique ID of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Clock returns the clock shared by the signals of the simulation.
func (s *Simulation) Clock() timing.Clock {
	return s.clock
}

// Recorder returns the data recorder used in the simulation. It is nil when
// recording is disabled.
func (s *Simulation) Recorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// RunRecorder returns the recorder of the run information. It is nil when
// recording is disabled.
func (s *Simulation) RunRecorder() *datarecording.RunRecorder {
	return s.runRecorder
}

// Monitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// NewSignal creates a realtime signal driven by the clock of the
// simulation.
func (s *Simulation) NewSignal(
	freq timing.Freq,
	mode timing.DeltaMode,
) (*timing.PeriodicSignal, error) {
	return timing.MakeSignalBuilder().
		WithClock(s.clock).
		WithFreq(freq).
		WithDeltaMode(mode).
		TryBuild()
}

// RegisterLoop registers a loop with the simulation. The loop's ticks are
// recorded and shown on the monitor if these services are enabled.
func (s *Simulation) RegisterLoop(l *pacing.Loop) {
	name := l.Name()
	if _, found := s.loopNameIndex[name]; found {
		log.Panicf("loop %s already registered", name)
	}

	s.loops = append(s.loops, l)
	s.loopNameIndex[name] = len(s.loops) - 1

	if s.dataRecorder != nil {
		l.AddRecorder(pacing.NewDataRecorderSink(s.dataRecorder, s.id))
	}

	if s.monitor != nil {
		s.monitor.RegisterLoop(l)

		bar := s.monitor.CreateProgressBar(name, l.MaxTicks())
		l.SetProgressReporter(bar)
		s.progressBars = append(s.progressBars, bar)
	}
}

// GetLoopByName returns the loop with the given name, or nil if there is no
// such loop.
func (s *Simulation) GetLoopByName(name string) *pacing.Loop {
	i, found := s.loopNameIndex[name]
	if !found {
		return nil
	}

	return s.loops[i]
}

// Loops returns all registered loops in registration order.
func (s *Simulation) Loops() []*pacing.Loop {
	loops := make([]*pacing.Loop, len(s.loops))
	copy(loops, s.loops)

	return loops
}

// Run runs all the loops concurrently until they all finish. The first loop
// that fails stops the others and its error is returned.
func (s *Simulation) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for _, l := range s.loops {
		wg.Add(1)

		go func(l *pacing.Loop) {
			defer wg.Done()

			err := l.Run(ctx)
			if err == nil {
				return
			}

			errOnce.Do(func() {
				firstErr = fmt.Errorf("simulation %s: %w", s.id, err)
				cancel()
			})
		}(l)
	}

	wg.Wait()

	if s.monitor != nil {
		for _, bar := range s.progressBars {
			s.monitor.CompleteProgressBar(bar)
		}
	}

	return firstErr
}

// Terminate records the end of the run and releases the recorder and the
// monitor.
func (s *Simulation) Terminate() {
	if s.runRecorder != nil {
		s.runRecorder.End()
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			log.Printf("failed to close recorder: %v", err)
		}
	}

	if s.monitor != nil {
		if err := s.monitor.Close(); err != nil {
			log.Printf("failed to close monitor: %v", err)
		}
	}
}
