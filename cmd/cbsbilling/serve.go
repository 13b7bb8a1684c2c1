package main

import (
	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cbsbilling/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only billing tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.billingService()
			if err != nil {
				return err
			}
			server := mcp.NewServer(mcp.Config{
				Billing: svc,
				Version: version,
				Logger:  a.logger,
			})

			a.logger.Info("starting stdio transport", "source", a.cfg.Source.Kind)
			// Run blocks until stdin closes or the context is canceled.
			if err := server.Run(cmd.Context(), &sdkmcp.StdioTransport{}); err != nil {
				a.logger.Error("stdio server error", "error", err)
				return err
			}
			a.logger.Info("shutting down")
			return nil
		},
	}
}
