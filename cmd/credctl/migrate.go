package main

import (
	"github.com/spf13/cobra"

	"github.com/ulut0002/base-backend/internal/infra/database"
)

// NewMigrateCmd creates the migrate subcommand with up, down and status children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or list the embedded PostgreSQL migrations.`,
	}

	cmd.AddCommand(newMigrateDirectionCmd(database.MigrateUp, "Apply all pending migrations"))
	cmd.AddCommand(newMigrateDirectionCmd(database.MigrateDown, "Roll back the most recent migration"))
	cmd.AddCommand(newMigrateDirectionCmd(database.MigrateStatus, "Show the applied and pending migrations"))

	return cmd
}

func newMigrateDirectionCmd(dir database.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(dir),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.OpenSQL(cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Migrate(cmd.Context(), db, cfg.Postgres, dir, log)
		},
	}
}
