package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"rental-process/internal/common/database"
	"rental-process/internal/common/logger"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the process store schema",
	}
	cmd.AddCommand(
		migrateAction("up", "Apply every pending migration", database.MigrateUp),
		migrateAction("down", "Roll back the latest migration", database.MigrateDown),
		migrateAction("status", "Show applied and pending migrations", database.MigrateStatus),
	)
	return cmd
}

type migrateFunc func(ctx context.Context, db *sql.DB, log logger.Logger) error

func migrateAction(use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			ctx := cmd.Context()
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return fn(ctx, pg.DB, log)
		},
	}
}
