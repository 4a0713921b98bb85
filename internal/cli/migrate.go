package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"story-server/internal/database"
	"story-server/pkg/migration"
)

// MigrateCmd applies or rolls back the embedded schema migrations.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(
		migrateAction("up", "Apply all pending migrations", func(m *migration.Migrator) error { return m.Up() }),
		migrateAction("down", "Roll back all migrations", func(m *migration.Migrator) error { return m.Down() }),
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migration.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					state := okLabel("clean")
					if dirty {
						state = warnLabel("dirty")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateAction(use, short string, fn func(*migration.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migration.Migrator) error {
				if err := fn(m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s migrate %s\n", okLabel("OK"), use)
				return nil
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(*migration.Migrator) error) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.closer()
	m := migration.NewMigrator(migration.Config{
		MigrationsPath: database.MigrationsPath,
		MigrationsFS:   database.MigrationsFS(),
	}, e.pool, e.log)
	return fn(m)
}
