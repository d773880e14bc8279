package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karthik11135/tardis/internal/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a convergence configuration file",
		Long: `Validate a convergence configuration file against the schema.

The schema is closed: unknown keys are rejected, numeric ranges are
checked, and t_rad/w blocks must carry explicit thresholds.

Examples:
  tardis validate convergence.yaml
  tardis validate convergence.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.LoadFile(args[0])
			if err != nil {
				if jsonOut {
					json.NewEncoder(os.Stdout).Encode(map[string]any{
						"valid": false,
						"error": err.Error(),
					})
					return nil
				}
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"valid":  true,
					"config": cfg,
				})
			}

			fmt.Printf("%s: valid\n", args[0])
			fmt.Printf("  type:                %s\n", cfg.Type)
			fmt.Printf("  fraction:            %g\n", cfg.Fraction)
			fmt.Printf("  hold_iterations:     %d\n", cfg.HoldIterations)
			fmt.Printf("  stop_if_converged:   %v\n", cfg.StopIfConverged)
			fmt.Printf("  lock_t_inner_cycles: %d\n", cfg.LockTInnerCycles)
			fmt.Printf("  t_rad:               damping=%g threshold=%g\n", cfg.TRad.DampingConstant, cfg.TRad.Threshold)
			fmt.Printf("  w:                   damping=%g threshold=%g\n", cfg.W.DampingConstant, cfg.W.Threshold)
			fmt.Printf("  t_inner:             damping=%g threshold=%g\n", cfg.TInner.DampingConstant, cfg.TInner.Threshold)
			if cfg.VInnerBoundary != nil {
				fmt.Printf("  v_inner_boundary:    damping=%g threshold=%g\n", cfg.VInnerBoundary.DampingConstant, cfg.VInnerBoundary.Threshold)
			}
			if cfg.ResidualThreshold != nil {
				fmt.Printf("  residual_luminosity: threshold=%g\n", *cfg.ResidualThreshold)
			}
			return nil
		},
	}
	return cmd
}
