package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/usermap/internal/db"
)

func MigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, db.RunMigrations)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, db.MigrateDown)
		},
	})

	return migrateCmd
}

func migrate(cmd *cobra.Command, step func(context.Context, *sql.DB, string) error) error {
	ctx := cmd.Context()
	database, cfg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(database)

	err = step(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		return err
	}

	version, err := db.MigrationVersion(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
	return nil
}
