package cli

import (
	"fmt"

	"zing/internal/bootstrap"
	"zing/internal/models"
	"zing/internal/service"

	"github.com/spf13/cobra"
)

// NewUsersCommand creates the users command group. Registration lives
// outside zing, so this is how operators create and badge accounts.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List, create and verify users",
	}
	cmd.AddCommand(newUsersListCommand(rootOpts))
	cmd.AddCommand(newUsersAddCommand(rootOpts))
	cmd.AddCommand(newUsersVerifyCommand(rootOpts, "verify", true))
	cmd.AddCommand(newUsersVerifyCommand(rootOpts, "unverify", false))
	return cmd
}

func newUsersListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				page := service.ClampPage(opts.Page)
				limit := opts.Limit
				if limit < 1 || limit > service.MaxPageSize {
					limit = service.MaxPageSize
				}
				users, err := rt.GraphService.ListUsers(ctx, limit, (page-1)*limit)
				if err != nil {
					return WrapExitError(ExitCommandError, "listing users failed", err)
				}
				if users == nil {
					users = []models.User{}
				}
				lines := make([]string, 0, len(users))
				for i := range users {
					lines = append(lines, userLine(&users[i]))
				}
				if len(lines) == 0 {
					lines = append(lines, "(no users)")
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(map[string]interface{}{"users": users}, lines...)
			})
		},
	}
	opts.bind(cmd, 50)
	return cmd
}

func newUsersAddCommand(opts *RootOptions) *cobra.Command {
	var displayName, bio string
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user, or show it when the username is taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				user, err := rt.GraphService.EnsureUser(ctx, &models.User{
					Username:    args[0],
					DisplayName: displayName,
					Bio:         bio,
				})
				if err != nil {
					return WrapExitError(ExitFailure, "adding user failed", err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(user, userLine(user))
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&bio, "bio", "", "profile bio")
	return cmd
}

func newUsersVerifyCommand(opts *RootOptions, use string, verified bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: fmt.Sprintf("Set the verified badge to %t", verified),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				user, err := rt.GraphService.SetVerified(ctx, args[0], verified)
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("user %q", args[0]), err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(user, userLine(user))
			})
		},
	}
}

func userLine(u *models.User) string {
	badge := ""
	if u.Verified {
		badge = " [verified]"
	}
	return fmt.Sprintf("%s  @%s%s  %q  followers %d, following %d",
		u.ID, u.Username, badge, u.DisplayName, u.FollowerCount, u.FollowingCount)
}
