package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/somatic-tier-classifier/internal/setup"
)

func newSetupCmd(configPath *string) *cobra.Command {
	var opts setup.Options

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&opts.ClientConfigPath, "client-config", "", "Client config file (default: platform location)")
	cmd.PersistentFlags().StringVar(&opts.ServerName, "name", setup.DefaultServerName, "Name to register the server under")

	register := &cobra.Command{
		Use:   "register",
		Short: "Add or replace the tier-classifier entry in the client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = *configPath
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\nRestart the client to pick up the change.\n", opts.ServerName, path)
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the tier-classifier binary (default: PATH, then this executable)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := setup.GetStatus(opts.ClientConfigPath, opts.ServerName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client config: %s\n", st.ClientConfigPath)
			fmt.Fprintf(out, "Registered:    %t\n", st.Registered)
			if st.Registered {
				fmt.Fprintf(out, "Command:       %s %v\n", st.Entry.Command, st.Entry.Args)
			}
			for _, issue := range st.Issues {
				fmt.Fprintf(out, "  ! %s\n", issue)
			}
			return nil
		},
	}

	cmd.AddCommand(register, status)
	return cmd
}
