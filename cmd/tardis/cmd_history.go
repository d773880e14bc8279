package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karthik11135/tardis/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			runStore, err := store.Open(root)
			if err != nil {
				return fmt.Errorf("failed to open run store: %w", err)
			}
			defer runStore.Close()

			runs, err := runStore.ListRuns(context.Background(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}
			for _, run := range runs {
				accepted := "-"
				if run.ConvergedAt >= 0 {
					accepted = fmt.Sprintf("%d", run.ConvergedAt)
				}
				fmt.Printf("%s  %-10s  iterations=%-3d  accepted_at=%-3s  zones=%d  %s\n",
					run.ID, run.Status, run.Iterations, accepted, run.Zones,
					run.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Maximum number of runs to list (0 = all)")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a run's summary and iteration trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

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

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"run":        run,
					"iterations": recs,
				})
			}

			fmt.Printf("run %s\n", run.ID)
			fmt.Printf("  status:      %s\n", run.Status)
			fmt.Printf("  iterations:  %d\n", run.Iterations)
			fmt.Printf("  accepted_at: %d\n", run.ConvergedAt)
			fmt.Printf("  zones:       %d\n", run.Zones)
			for _, rec := range recs {
				mark := " "
				if rec.ConvergedNow {
					mark = "*"
				}
				fmt.Printf("  %s iter %-3d hold=%-2d t_inner=%-9.1f next=%-9.1f residual=%+.4f\n",
					mark, rec.Index, rec.HoldCount, rec.Observables.TInner,
					rec.NextTInner, rec.Observables.ResidualLuminosity())
			}
			return nil
		},
	}
	return cmd
}
