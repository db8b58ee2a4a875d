package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pulse/datarecording"
	"github.com/sarchlab/pulse/timing"
)

// Environment variables that provide defaults for the run flags.
const (
	EnvRate        = "PULSE_RATE"
	EnvMode        = "PULSE_MODE"
	EnvPoll        = "PULSE_POLL"
	EnvMonitorPort = "PULSE_MONITOR_PORT"
	EnvRecorder    = "PULSE_RECORDER"
	EnvDSN         = "PULSE_CLICKHOUSE_DSN"
)

var flagEnv = map[string]string{
	"rate":           EnvRate,
	"mode":           EnvMode,
	"poll":           EnvPoll,
	"monitor-port":   EnvMonitorPort,
	"recorder":       EnvRecorder,
	"clickhouse-dsn": EnvDSN,
}

type runOptions struct {
	rate        timing.Freq
	mode        timing.DeltaMode
	poll        time.Duration
	duration    time.Duration
	ticks       uint64
	record      string
	noRecord    bool
	recorder    *datarecording.RecorderConfig
	monitor     bool
	monitorPort int
	openBrowser bool
	work        time.Duration
	quiet       bool
}

// applyEnv sets the flags that were not given on the command line from
// their environment variables.
func applyEnv(cmd *cobra.Command) error {
	for flag, env := range flagEnv {
		if cmd.Flags().Changed(flag) {
			continue
		}

		value, ok := os.LookupEnv(env)
		if !ok || value == "" {
			continue
		}

		if err := cmd.Flags().Set(flag, value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", env, value, err)
		}
	}

	return nil
}

func parseRunOptions(cmd *cobra.Command) (runOptions, error) {
	explicitPort := cmd.Flags().Changed("monitor-port")
	explicitRecorder := cmd.Flags().Changed("recorder") ||
		cmd.Flags().Changed("clickhouse-dsn")

	if err := applyEnv(cmd); err != nil {
		return runOptions{}, err
	}

	flags := cmd.Flags()
	opts := runOptions{}

	rate, _ := flags.GetString("rate")
	freq, err := timing.ParseFreq(rate)
	if err != nil {
		return opts, err
	}

	if err := freq.Validate(); err != nil {
		return opts, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	mode, _ := flags.GetString("mode")
	opts.mode, err = timing.ParseDeltaMode(mode)
	if err != nil {
		return opts, err
	}

	opts.rate = freq
	opts.poll, _ = flags.GetDuration("poll")
	opts.duration, _ = flags.GetDuration("duration")
	opts.ticks, _ = flags.GetUint64("ticks")
	opts.record, _ = flags.GetString("record")
	opts.noRecord, _ = flags.GetBool("no-record")
	opts.monitor, _ = flags.GetBool("monitor")
	opts.monitorPort, _ = flags.GetInt("monitor-port")
	opts.openBrowser, _ = flags.GetBool("open-browser")
	opts.work, _ = flags.GetDuration("work")
	opts.quiet, _ = flags.GetBool("quiet")

	backend, _ := flags.GetString("recorder")
	dsn, _ := flags.GetString("clickhouse-dsn")

	switch {
	case opts.noRecord && explicitRecorder:
		return opts, fmt.Errorf("--recorder and --clickhouse-dsn " +
			"cannot be used with --no-record")
	case !opts.noRecord:
		opts.recorder, err = recorderConfig(backend, dsn, opts.record)
		if err != nil {
			return opts, err
		}
	}

	switch {
	case opts.poll < 0:
		return opts, fmt.Errorf("poll interval cannot be negative")
	case opts.duration < 0:
		return opts, fmt.Errorf("duration cannot be negative")
	case opts.work < 0:
		return opts, fmt.Errorf("work cannot be negative")
	case opts.noRecord && opts.record != "":
		return opts, fmt.Errorf("--record and --no-record are exclusive")
	case !opts.monitor && (explicitPort || opts.openBrowser):
		return opts, fmt.Errorf(
			"--monitor-port and --open-browser require --monitor")
	}

	return opts, nil
}

// recorderConfig returns the recorder configuration selected by the flags,
// or nil for the default SQLite recording.
func recorderConfig(
	backend, dsn, record string,
) (*datarecording.RecorderConfig, error) {
	switch backend {
	case "", datarecording.BackendSQLite:
		if dsn != "" {
			return nil, fmt.Errorf(
				"--clickhouse-dsn requires --recorder %s",
				datarecording.BackendClickHouse)
		}

		return nil, nil
	case datarecording.BackendClickHouse:
		if record != "" {
			return nil, fmt.Errorf(
				"--record names a SQLite file and cannot be used with %s",
				datarecording.BackendClickHouse)
		}

		c := &datarecording.RecorderConfig{
			Type:    datarecording.BackendClickHouse,
			ConnStr: dsn,
		}

		if _, err := c.ClickHouseOptions(); err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("unknown recorder %q", backend)
	}
}
