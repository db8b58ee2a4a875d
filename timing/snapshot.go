package timing

import "time"

// A Snapshot is a copy of the state of a PeriodicSignal, taken at a single
// clock sample. Unlike the signal, it can be passed between goroutines.
type Snapshot struct {
	Freq                 float64       `json:"freq"`
	Period               time.Duration `json:"period"`
	DeltaMode            string        `json:"delta_mode"`
	TimeModel            string        `json:"time_model"`
	StartTime            time.Time     `json:"start_time"`
	SampledAt            time.Time     `json:"sampled_at"`
	TickCount            uint64        `json:"tick_count"`
	LastTickTime         time.Time     `json:"last_tick_time"`
	LastDelta            time.Duration `json:"last_delta"`
	Due                  bool          `json:"due"`
	CycleProgress        float64       `json:"cycle_progress"`
	CycleProgressClamped float64       `json:"cycle_progress_clamped"`
	ProgressAtLastPoll   float64       `json:"progress_at_last_poll"`
}

// Snapshot captures the current state of the signal without changing it.
func (s *PeriodicSignal) Snapshot() Snapshot {
	now := s.clock.Now()
	due := s.slotAt(now) > s.tickCount

	progress := s.CycleProgressAt(now)
	clamped := progress
	if due {
		clamped = 1
	}

	return Snapshot{
		Freq:                 float64(s.freq),
		Period:               s.period,
		DeltaMode:            s.deltaMode.String(),
		TimeModel:            s.timeModel.String(),
		StartTime:            s.startTime,
		SampledAt:            now,
		TickCount:            s.tickCount,
		LastTickTime:         s.lastTickTime,
		LastDelta:            s.lastDelta,
		Due:                  due,
		CycleProgress:        progress,
		CycleProgressClamped: clamped,
		ProgressAtLastPoll:   s.progressAtLastPoll,
	}
}
