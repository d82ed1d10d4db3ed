package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for batch inspection over stdio",
		Long: `Start a Model Context Protocol server exposing read-only batch inspection
tools (sweeper_status, sweeper_experiments, sweeper_collations) over stdio.
Blocks until the client disconnects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := mcp.NewServer(&mcp.Config{
				Name:    "sweeper",
				Version: version,
			})
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
