package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pulse/datarecording"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <recording.sqlite3>",
		Short: "Report the drift of a recorded run.",
		Long: "`report` reads the ticks of a recording and prints, for " +
			"every loop, the tick deltas and how far the last tick drifted " +
			"from the timeline.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			return report(cmd, reader)
		},
	}
}

func report(cmd *cobra.Command, reader datarecording.DataReader) error {
	out := cmd.OutOrStdout()

	info, err := datarecording.ReadRunInfo(cmd.Context(), reader)
	if err != nil {
		return err
	}

	for _, i := range info {
		fmt.Fprintf(out, "%s: %s\n", i.Property, i.Value)
	}

	ticks, err := datarecording.ReadTicks(cmd.Context(), reader)
	if err != nil {
		return err
	}

	loops := make([]string, 0, len(ticks))
	for name := range ticks {
		loops = append(loops, name)
	}

	sort.Strings(loops)

	for _, name := range loops {
		printReport(out, datarecording.Summarize(ticks[name]))
	}

	return nil
}

func printReport(out io.Writer, r datarecording.DriftReport) {
	fmt.Fprintf(out, "\nloop %s\n", r.Loop)
	fmt.Fprintf(out, "  ticks:         %d (%d missed periods)\n",
		r.Ticks, r.Missed)
	fmt.Fprintf(out, "  delta:         min %s, mean %s, max %s\n",
		r.MinDelta, r.MeanDelta, r.MaxDelta)
	fmt.Fprintf(out, "  span:          %s (expected %s)\n",
		r.Span, r.ExpectedSpan)
	fmt.Fprintf(out, "  drift:         %s\n", r.Drift)
}
