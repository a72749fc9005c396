package main

import (
	"github.com/spf13/cobra"

	"orchestrator-runner/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factory, err := a.factory()
			if err != nil {
				return err
			}
			a.logger.Info("serving MCP over stdio")
			return mcp.NewServer(factory, version).ServeStdio()
		},
	}
}
