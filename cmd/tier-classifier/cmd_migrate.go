package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/somatic-tier-classifier/internal/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the PostgreSQL result schema",
		Long: `Runs golang-migrate against storage.postgres_url. storage.migrations_path may
name another migration source; by default the schema compiled into the binary is used.
The SQLite store creates its own schema and needs no migrations.`,
	}

	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			a, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			storage := a.config.Storage
			if storage.Driver != "postgres" {
				return fmt.Errorf("migrations apply to the postgres driver, not %q", storage.Driver)
			}

			runner, err := database.NewMigrationRunner(storage.PostgresURL, storage.MigrationsPath, a.logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			if up {
				return runner.Up(cmd.Context())
			}
			return runner.Down(cmd.Context())
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Roll back the most recent migration", Args: cobra.NoArgs, RunE: run(false)},
	)
	return cmd
}
