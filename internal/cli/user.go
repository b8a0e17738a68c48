package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/booking_api/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		p          service.RegisterUserParams
		telegramID int64
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user with a role (admin, technician or customer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, logger, a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			if telegramID != 0 {
				p.TelegramChatID = &telegramID
			}

			user, err := a.Users.RegisterUser(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	c.Flags().StringVar(&p.Username, "username", "", "username")
	c.Flags().StringVar(&p.Name, "name", "", "display name (defaults to username)")
	c.Flags().StringVar(&p.Email, "email", "", "e-mail for notifications")
	c.Flags().StringVar(&p.PhoneNumber, "phone", "", "phone number")
	c.Flags().Int64Var(&telegramID, "telegram-chat-id", 0, "telegram chat id for notifications")
	c.Flags().StringVar(&p.Role, "role", "customer", "admin, technician or customer")
	_ = c.MarkFlagRequired("username")
	return c
}
