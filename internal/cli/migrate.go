package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigbridge/gigbridge-backend/pkg/migrate"
)

func newMigrateCmd(openSQL SQLOpener) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage goose migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (defaults to the set built into the binary)")

	for _, command := range []string{"up", "down", "status"} {
		command := command
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: fmt.Sprintf("Run goose %s", command),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSQL(cmd, openSQL, func(ctx context.Context, db *sql.DB) error {
					return migrate.Run(ctx, db, dir, command, cmd.OutOrStdout())
				})
			},
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "version VERSION",
			Short: "Migrate up or down to VERSION (YYYYMMDDHHMMSS)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSQL(cmd, openSQL, func(ctx context.Context, db *sql.DB) error {
					return migrate.MigrateToVersion(ctx, db, dir, args[0], cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a timestamped SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target := dir
				if target == "" {
					target = migrate.DefaultDir
				}
				path, err := migrate.CreateSQLMigration(target, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names, versions and goose markers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
				return nil
			},
		},
	)
	return cmd
}

func withSQL(cmd *cobra.Command, openSQL SQLOpener, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, release, err := openSQL(ctx)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, db)
}
