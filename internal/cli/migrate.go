package cli

import (
	"fmt"
	"strconv"

	"zing/internal/bootstrap"
	"zing/internal/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newMigrateUpCommand(rootOpts))
	cmd.AddCommand(newMigrateStatusCommand(rootOpts))
	cmd.AddCommand(newMigrateRollbackCommand(rootOpts))
	return cmd
}

func newMigrateUpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				if err := database.Migrate(ctx, rt.DB); err != nil {
					return WrapExitError(ExitCommandError, "migration failed", err)
				}
				return writeStatus(cmd, opts, rt, "schema up to date")
			})
		},
	}
}

func newMigrateStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				return writeStatus(cmd, opts, rt, "")
			})
		},
	}
}

func newMigrateRollbackCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Drop the tables owned by a schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "invalid version", err)
			}
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				if err := database.RollbackVersion(ctx, rt.DB, version); err != nil {
					return WrapExitError(ExitCommandError, "rollback failed", err)
				}
				return writeStatus(cmd, opts, rt, fmt.Sprintf("rolled back version %d", version))
			})
		},
	}
}

type statusView struct {
	Applied []int    `json:"applied"`
	Pending []string `json:"pending"`
}

func writeStatus(cmd *cobra.Command, opts *RootOptions, rt *bootstrap.Runtime, headline string) error {
	status, err := database.GetSchemaStatus(cmd.Context(), rt.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "schema status failed", err)
	}

	view := statusView{Applied: status.AppliedVersions, Pending: []string{}}
	if view.Applied == nil {
		view.Applied = []int{}
	}
	for _, v := range status.Pending {
		view.Pending = append(view.Pending, v.String())
	}

	var lines []string
	if headline != "" {
		lines = append(lines, headline)
	}
	lines = append(lines, fmt.Sprintf("applied: %v", view.Applied))
	if len(view.Pending) == 0 {
		lines = append(lines, "pending: none")
	} else {
		for _, p := range view.Pending {
			lines = append(lines, "pending: "+p)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(view, lines...)
}
