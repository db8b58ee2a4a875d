package simulation

import (
	"log"

	"github.com/sarchlab/pulse/datarecording"
	"github.com/sarchlab/pulse/idgen"
	"github.com/sarchlab/pulse/monitoring"
	"github.com/sarchlab/pulse/timing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordingOn    bool
	outputFileName string
	recorderConfig *datarecording.RecorderConfig
	clock          timing.Clock
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:   true,
		recordingOn: true,
		clock:       timing.RealClock{},
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOpenBrowser opens the monitoring dashboard in a browser once the
// server is started.
func (b Builder) WithOpenBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutRecording sets the simulation to not record ticks.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithRecorderConfig selects the recorder backend. It overrides the output
// file name.
func (b Builder) WithRecorderConfig(c datarecording.RecorderConfig) Builder {
	b.recorderConfig = &c
	return b
}

// WithClock sets the clock used by the signals created by the simulation.
func (b Builder) WithClock(c timing.Clock) Builder {
	b.clock = c
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		log.Panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn &&
		(b.outputFileName != "" || b.recorderConfig != nil) {
		log.Panic("recorder cannot be configured when recording is disabled")
	}

	if b.clock == nil {
		log.Panic("clock is not set")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:            idgen.NewUnique().Generate(),
		clock:         b.clock,
		loopNameIndex: make(map[string]int),
	}

	if b.recordingOn {
		s.dataRecorder = b.buildRecorder(s.id)
		s.runRecorder = datarecording.NewRunRecorder(s.dataRecorder)
		s.runRecorder.Start()
		s.runRecorder.Set("Run ID", s.id)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithOpenBrowser(b.openBrowser)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.StartServer()
	}

	return s
}

func (b Builder) buildRecorder(id string) datarecording.DataRecorder {
	if b.recorderConfig != nil {
		return datarecording.NewDataRecorderWithConfig(*b.recorderConfig)
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "pulse_run_" + id
	}

	return datarecording.New(outputPath)
}
