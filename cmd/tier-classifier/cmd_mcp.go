package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/somatic-tier-classifier/internal/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server over stdio",
		Long: `Serves the classify_variant_tier, describe_pathway, list_frameworks and
get_tier_history tools over stdin/stdout. Logs go to stderr unless logging.output
points elsewhere; stdout belongs to the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			return mcp.NewServer(a.config.MCP, a.pipeline, a.logger).Start(ctx)
		},
	}
}
