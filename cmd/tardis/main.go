package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// envOr returns the environment variable's value, or def when unset or
// empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tardis",
		Short: "Convergence control for iterative radiative-transfer runs",
		Long: `tardis drives the convergence-acceptance loop of a Monte Carlo
radiative-transfer simulation: it evaluates per-iteration observables
against damped convergence criteria, decides when a run has stabilized,
and records every iteration for later inspection and export.`,
	}

	// Global flags; TARDIS_ROOT and TARDIS_LOG_LEVEL set the defaults
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", envOr("TARDIS_ROOT", "."), "Working root directory (holds .tardis)")
	rootCmd.PersistentFlags().String("log-level", envOr("TARDIS_LOG_LEVEL", "info"), "Log level: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newValidateCmd(),
		newRunCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newExportCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
