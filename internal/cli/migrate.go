package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/booking_api/internal/app"
	"github.com/Freeeeeet/booking_api/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(newMigrateSubCmd("up", "Apply all pending migrations", func(ctx context.Context, m *app.Migrator) error {
		return m.Run(ctx)
	}))
	cmd.AddCommand(newMigrateSubCmd("status", "Show migration status", func(ctx context.Context, m *app.Migrator) error {
		return m.Status(ctx)
	}))
	return cmd
}

func newMigrateSubCmd(use, short string, run func(ctx context.Context, m *app.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrations require STORE=%s", config.StorePostgres)
			}

			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := app.OpenPool(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			return run(ctx, migrator)
		},
	}
}
