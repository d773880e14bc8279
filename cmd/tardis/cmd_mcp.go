package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/karthik11135/tardis/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run the Model Context Protocol server over stdio, exposing stored
runs to agent tooling through the tardis_runs, tardis_run, and
tardis_trace tools.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "tardis",
				Version: version,
				Root:    root,
			})
			if err != nil {
				return err
			}

			return server.Run(context.Background())
		},
	}
	return cmd
}
