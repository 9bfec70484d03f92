package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/tiering"
)

func newFrameworksCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "frameworks",
		Short: "List guideline frameworks, their tiers and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			engine := tiering.NewEngine(a.logger)
			out := cmd.OutOrStdout()

			if asJSON {
				var descriptions []domain.FrameworkDescription
				for _, f := range engine.Frameworks() {
					d, err := engine.Describe(f)
					if err != nil {
						return err
					}
					descriptions = append(descriptions, d)
				}
				return writeJSON(out, descriptions)
			}

			for _, f := range engine.Frameworks() {
				d, err := engine.Describe(f)
				if err != nil {
					return err
				}
				tiers := make([]string, len(d.Severity))
				for i, t := range d.Severity {
					tiers[i] = string(t)
				}
				fmt.Fprintf(out, "%s (%s)\n", d.ID, d.Name)
				fmt.Fprintf(out, "  tiers: %s, unclassified %s\n", strings.Join(tiers, " > "), d.Unclassified)

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, r := range d.Rules {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.ID, r.Tier, r.Description)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the framework descriptions as JSON")
	return cmd
}
