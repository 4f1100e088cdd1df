package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bizpulse/internal/auth"
	"bizpulse/internal/types"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUsersPromoteCmd(a))
	return cmd
}

// newUsersPromoteCmd bootstraps the first admin. Later role changes go
// through the admin API, which enforces the last-admin rule.
func newUsersPromoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := auth.CanonicalizeEmail(args[0])

			s, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			user, err := s.users.GetByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("find user %q: %w", email, err)
			}
			if user.Role == types.RoleAdmin {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already an admin.\n", email)
				return nil
			}

			if err := s.users.UpdateRole(cmd.Context(), user.ID, types.RoleAdmin); err != nil {
				return err
			}
			a.logger.Info("user promoted", "user_id", user.ID, "previous_role", string(user.Role))
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin.\n", email)
			return nil
		},
	}
}
