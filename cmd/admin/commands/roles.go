package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var grantCmd = &cobra.Command{
	Use:   "grant <user_id> <role>",
	Short: "Assign a role to a user",
	Long: `Assign a role to a user without the HTTP allow-lists. This is the only
way to create the first ROLE_SUPER_ADMIN outside development bootstrap.`,
	Example: `  admin grant 7 ROLE_SUPER_ADMIN
  admin grant 7 moderator`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		user, err := rt.users.AssignRole(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s (ID: %d) now holds %s\n", user.UserName, user.ID, user.Roles)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:     "revoke <user_id> <role>",
	Short:   "Remove a role from a user",
	Example: `  admin revoke 7 ROLE_ADMIN`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		user, err := rt.users.RevokeRole(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s (ID: %d) now holds %s\n", user.UserName, user.ID, user.Roles)
		return nil
	},
}

var (
	disable bool
)

var activeCmd = &cobra.Command{
	Use:   "set-active <user_id>",
	Short: "Enable or disable an account",
	Example: `  admin set-active 7
  admin set-active 7 --disable`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		if err := rt.users.SetActive(cmd.Context(), id, !disable); err != nil {
			return err
		}
		state := "enabled"
		if disable {
			state = "disabled"
		}
		fmt.Printf("✅ User %d %s\n", id, state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(grantCmd, revokeCmd, activeCmd)
	activeCmd.Flags().BoolVar(&disable, "disable", false, "Disable instead of enable")
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user ID %q", raw)
	}
	return uint(id), nil
}
