package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath *string) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every stored tier result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.store == nil {
				return fmt.Errorf("result storage is disabled")
			}

			return writeOutput(cmd.OutOrStdout(), outputPath, func(w io.Writer) error {
				return a.store.ExportJSON(cmd.Context(), w)
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the export to this file instead of stdout")
	return cmd
}
