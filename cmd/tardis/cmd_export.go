package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karthik11135/tardis/internal/export"
	"github.com/karthik11135/tardis/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export a run's iteration table as an Arrow IPC file",
		Long: `Export a run's iteration records as an Arrow IPC file, flattened
to one row per (iteration, zone) pair for notebook post-processing.

Examples:
  tardis export 2f1c... --out run.arrow
  tardis export 2f1c...            # writes <run-id>.arrow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			out, _ := cmd.Flags().GetString("out")

			runStore, err := store.Open(root)
			if err != nil {
				return fmt.Errorf("failed to open run store: %w", err)
			}
			defer runStore.Close()

			ctx := context.Background()
			run, err := runStore.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			recs, err := runStore.Iterations(ctx, run.ID)
			if err != nil {
				return err
			}

			if out == "" {
				out = run.ID + ".arrow"
			}
			if err := export.WriteFile(out, run, recs); err != nil {
				return err
			}

			rows := 0
			for _, rec := range recs {
				rows += rec.Observables.Zones()
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"run_id": run.ID,
					"file":   out,
					"rows":   rows,
				})
			}
			fmt.Printf("exported %d rows to %s\n", rows, out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output file path (default: <run-id>.arrow)")
	return cmd
}
