// tier-classifier assigns clinical actionability tiers to somatic variants.
//
// Usage:
//
//	tier-classifier classify --cases cases.yaml [--output results.json]
//	tier-classifier serve
//	tier-classifier mcp
//	tier-classifier migrate up|down
//	tier-classifier frameworks
//	tier-classifier export [--output export.json]
//	tier-classifier setup register|status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tier-classifier",
		Short: "Somatic variant actionability tiering",
		Long: "tier-classifier routes somatic variants through an analysis pathway, aggregates\n" +
			"knowledge-base evidence and assigns tiers under AMP/ASCO/CAP, CGC/VICC and OncoKB-style rules.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: search ./config.yaml, ./config, ~/.tier-classifier)")

	root.AddCommand(
		newClassifyCmd(&configPath),
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newMigrateCmd(&configPath),
		newFrameworksCmd(&configPath),
		newExportCmd(&configPath),
		newSetupCmd(&configPath),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
