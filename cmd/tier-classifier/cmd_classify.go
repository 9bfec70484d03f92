package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/somatic-tier-classifier/internal/service"
)

func newClassifyCmd(configPath *string) *cobra.Command {
	var (
		casesPath  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify every case in a YAML or JSON case file",
		Long: `Reads a case file with a top-level "cases" list, classifies each case under the
configured frameworks and writes the per-case results as JSON. Cases without
knowledge-base lookups are looked up in the configured snapshot or HTTP sources.

A failing case is reported inline and does not stop the batch; the command exits
non-zero when any case failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cases, err := service.LoadCases(casesPath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.pipeline.ClassifyBatch(cmd.Context(), cases)
			if err != nil {
				return err
			}

			err = writeOutput(cmd.OutOrStdout(), outputPath, func(w io.Writer) error {
				return writeJSON(w, items)
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, item := range items {
				if item.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d case(s) failed", failed, len(items))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "", "Case file to classify (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write results to this file instead of stdout")
	_ = cmd.MarkFlagRequired("cases")
	return cmd
}

// writeOutput runs write against stdout, or against a file created at path. A file
// that fails to close is reported, since buffered data may not have reached disk.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return writeAndClose(f, write)
}

func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	if err := write(wc); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
