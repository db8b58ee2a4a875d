// Package cmd provides the command-line interface for Pulse.
package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// newRootCmd creates the base command when called without any subcommands.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "pulse",
		Short: "Pulse runs fixed-rate loops and reports how well they kept " +
			"their pace.",
		Long: `Pulse runs fixed-rate loops driven by a polled periodic ` +
			`signal. It can record every claimed tick, serve the loop state ` +
			`over HTTP, and report the drift of a recorded run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(".env")
		},
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadDotEnv loads environment variables from the given file. A missing file
// is not an error.
func loadDotEnv(filename string) error {
	err := godotenv.Load(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It runs the registered exit handlers before the process
// exits.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
