package pacing

import (
	"github.com/sarchlab/pulse/datarecording"
)

// DataRecorderSink writes ticks into the ticks table of a DataRecorder.
type DataRecorderSink struct {
	recorder datarecording.DataRecorder
	runID    string
}

// NewDataRecorderSink creates the ticks table if needed and returns a sink
// that tags every record with the run ID.
func NewDataRecorderSink(
	recorder datarecording.DataRecorder,
	runID string,
) *DataRecorderSink {
	recorder.CreateTable(datarecording.TickTable, datarecording.TickRecord{})

	return &DataRecorderSink{
		recorder: recorder,
		runID:    runID,
	}
}

// RecordTick inserts a TickRecord.
func (s *DataRecorderSink) RecordTick(info TickInfo) {
	s.recorder.InsertData(datarecording.TickTable, datarecording.TickRecord{
		RunID:     s.runID,
		Loop:      info.Loop,
		TickCount: info.TickCount,
		Missed:    info.Missed,
		PeriodNs:  int64(info.Period),
		DeltaNs:   int64(info.Delta),
		TimeNs:    int64(info.Elapsed),
	})
}
