package main

import (
	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Expose experiments to MCP clients over stdin/stdout.

Tools: tickframe_run, tickframe_runs, tickframe_metrics, tickframe_graph,
tickframe_presets. Resource: tickframe://runs/recent. Tool calls are
rate limited and audited to .tickframe/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr via e.logger.
			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "tickframe",
				Version: version,
				Root:    e.root,
				Logger:  e.logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
