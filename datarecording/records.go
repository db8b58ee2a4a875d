package datarecording

import (
	"time"
)

// Table names used by the tick recorders.
const (
	TickTable    = "ticks"
	RunInfoTable = "run_info"
)

// TickRecord is one claimed tick of a loop.
type TickRecord struct {
	RunID     string
	Loop      string
	TickCount uint64
	Missed    uint64
	PeriodNs  int64
	DeltaNs   int64
	TimeNs    int64
}

// RunInfo is a property of a run, such as its start time or command line.
type RunInfo struct {
	Property string
	Value    string
}

// DriftReport summarizes the ticks recorded for one loop.
type DriftReport struct {
	Loop         string
	Ticks        int
	Missed       uint64
	MinDelta     time.Duration
	MaxDelta     time.Duration
	MeanDelta    time.Duration
	Span         time.Duration
	ExpectedSpan time.Duration

	// Drift is how much later the last tick was claimed than the timeline
	// predicts from the first tick.
	Drift time.Duration
}

// Summarize builds a DriftReport from the ticks of a single loop, ordered by
// tick count. It returns a zero report for an empty slice.
func Summarize(records []TickRecord) DriftReport {
	if len(records) == 0 {
		return DriftReport{}
	}

	first := records[0]
	last := records[len(records)-1]

	report := DriftReport{
		Loop:     first.Loop,
		Ticks:    len(records),
		MinDelta: time.Duration(first.DeltaNs),
		MaxDelta: time.Duration(first.DeltaNs),
	}

	var total time.Duration
	for _, r := range records {
		d := time.Duration(r.DeltaNs)
		total += d
		report.Missed += r.Missed

		if d < report.MinDelta {
			report.MinDelta = d
		}

		if d > report.MaxDelta {
			report.MaxDelta = d
		}
	}

	report.MeanDelta = total / time.Duration(len(records))
	report.Span = time.Duration(last.TimeNs - first.TimeNs)
	report.ExpectedSpan = time.Duration(last.TickCount-first.TickCount) *
		time.Duration(first.PeriodNs)
	report.Drift = report.Span - report.ExpectedSpan

	return report
}
