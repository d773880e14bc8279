package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karthik11135/tardis/internal/config"
	"github.com/karthik11135/tardis/internal/driver"
	"github.com/karthik11135/tardis/internal/logging"
	"github.com/karthik11135/tardis/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the convergence loop over an observables stream",
		Long: `Run the convergence loop until acceptance, exhaustion, or the
iteration cap.

Observables come either from a JSONL replay file (--observables), one
iteration per line, or from the built-in synthetic relaxation source
when no file is given. Every iteration is persisted under .tardis.

Examples:
  tardis run --config convergence.yaml --observables trace.jsonl
  tardis run --synthetic-zones 30 --max-iterations 40
  tardis run --config convergence.yaml --no-store --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			logLevel, _ := cmd.Flags().GetString("log-level")
			configPath, _ := cmd.Flags().GetString("config")
			observables, _ := cmd.Flags().GetString("observables")
			maxIterations, _ := cmd.Flags().GetInt("max-iterations")
			zones, _ := cmd.Flags().GetInt("synthetic-zones")
			noStore, _ := cmd.Flags().GetBool("no-store")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var src driver.Source
			if observables != "" {
				jsonlSrc, err := driver.OpenJSONL(observables)
				if err != nil {
					return err
				}
				defer jsonlSrc.Close()
				src = jsonlSrc
			} else {
				synCfg := driver.DefaultSyntheticConfig()
				if zones > 0 {
					synCfg.Zones = zones
				}
				src = driver.NewSyntheticSource(synCfg)
			}

			opts := driver.Options{
				Logger:        logging.NewLogger(logLevel, os.Stderr),
				Trace:         logging.NewTraceLogger(store.LocalTardisPath(root), logLevel),
				MaxIterations: maxIterations,
			}
			defer opts.Trace.Close()

			if !noStore {
				runStore, err := store.Open(root)
				if err != nil {
					return fmt.Errorf("failed to open run store: %w", err)
				}
				defer runStore.Close()
				opts.Store = runStore
			}

			loop, err := driver.New(cfg, src, nil, opts)
			if err != nil {
				return err
			}

			res, err := loop.Run(context.Background())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"run_id":       res.Run.ID,
					"status":       res.Run.Status,
					"iterations":   res.Run.Iterations,
					"converged_at": res.Run.ConvergedAt,
					"zones":        res.Run.Zones,
				})
			}

			fmt.Printf("run %s: %s after %d iterations\n", res.Run.ID, res.Run.Status, res.Run.Iterations)
			if res.Run.ConvergedAt >= 0 {
				fmt.Printf("  accepted at iteration %d\n", res.Run.ConvergedAt)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Convergence configuration file (YAML; defaults and TARDIS_* environment overrides apply if omitted)")
	cmd.Flags().String("observables", "", "JSONL observables file to replay (synthetic source if omitted)")
	cmd.Flags().Int("max-iterations", driver.DefaultMaxIterations, "Iteration cap for the run")
	cmd.Flags().Int("synthetic-zones", 0, "Zone count for the synthetic source")
	cmd.Flags().Bool("no-store", false, "Do not persist the run under .tardis")

	return cmd
}
