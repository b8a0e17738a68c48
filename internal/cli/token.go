package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var userID int64

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, logger, a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			user, err := a.Users.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %d not found", userID)
			}

			tokens, err := a.Tokens()
			if err != nil {
				return err
			}
			token, err := tokens.Issue(user.ID, string(user.Role))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}
