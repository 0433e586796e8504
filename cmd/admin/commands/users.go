package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gatekeeper/internal/models"
	"gatekeeper/internal/service"

	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listOffset int
	newRoles   []string
)

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List accounts with their roles",
	Example: `  admin list-users
  admin list-users --limit 20 --offset 40 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		operator := service.Actor{UserName: "operator", Roles: models.NewRoleSet(models.RoleAdmin)}
		users, err := rt.users.ListUsers(cmd.Context(), operator, listLimit, listOffset)
		if err != nil {
			return err
		}
		return printUsers(users)
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user <user_name> <password>",
	Short: "Create an account with the given roles",
	Example: `  admin create-user root s3cretpass --role ROLE_SUPER_ADMIN
  admin create-user mona s3cretpass --role moderator`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roles := models.NewRoleSet(models.DefaultRole)
		for _, raw := range newRoles {
			role, ok := models.ParseRole(raw)
			if !ok {
				return fmt.Errorf("unknown role %q", raw)
			}
			roles = roles.Add(role)
		}

		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		user, err := rt.users.CreateUser(cmd.Context(), args[0], args[1], roles)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Created %s (ID: %d) with roles %s\n", user.UserName, user.ID, user.Roles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listUsersCmd, createUserCmd)

	listUsersCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum number of users")
	listUsersCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of users to skip")
	createUserCmd.Flags().StringSliceVarP(&newRoles, "role", "r", nil, "Additional role (repeatable)")
}

func printUsers(users []models.User) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}
	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tACTIVE\tROLES")
	for _, u := range users {
		roles := make([]string, 0, len(u.Roles))
		for _, r := range u.Roles.Slice() {
			roles = append(roles, string(r))
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", u.ID, u.UserName, u.Active, strings.Join(roles, ","))
	}
	return w.Flush()
}
