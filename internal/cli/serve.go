package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/app"
	"github.com/Freeeeeet/booking_api/internal/config"
	"github.com/Freeeeeet/booking_api/internal/service"
)

func newServeCmd() *cobra.Command {
	var migrate, seedDemo bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			if migrate && cfg.Store == config.StorePostgres {
				if err := runMigrations(ctx, cfg, logger); err != nil {
					return err
				}
			}

			if seedDemo {
				if cfg.Store != config.StoreMemory {
					return fmt.Errorf("--seed-demo requires STORE=memory")
				}
				if err := seedDemoUsers(ctx, a, logger); err != nil {
					return err
				}
			}

			return a.Serve(ctx)
		},
	}

	c.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	c.Flags().BoolVar(&seedDemo, "seed-demo", false, "create demo users and print their tokens (memory store only)")
	return c
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
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

	return migrator.Run(ctx)
}

func seedDemoUsers(ctx context.Context, a *app.App, logger *zap.Logger) error {
	tokens, err := a.Tokens()
	if err != nil {
		return err
	}

	demo := []service.RegisterUserParams{
		{Username: "admin", Name: "Admin", Role: "admin"},
		{Username: "tech1", Name: "Technician One", Role: "technician"},
		{Username: "tech2", Name: "Technician Two", Role: "technician"},
		{Username: "customer", Name: "Demo Customer", Email: "customer@example.com", Role: "customer"},
	}
	for _, p := range demo {
		user, err := a.Users.RegisterUser(ctx, p)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", p.Username, err)
		}
		token, err := tokens.Issue(user.ID, string(user.Role))
		if err != nil {
			return err
		}
		logger.Info("Demo user created",
			zap.Int64("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("role", string(user.Role)),
			zap.String("token", token),
		)
	}
	return nil
}
