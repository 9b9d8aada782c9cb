// Package cli implements zingctl, the administrative command line for zing.
package cli

import (
	"context"
	"fmt"
	"slices"

	"zing/internal/bootstrap"
	"zing/internal/config"

	"github.com/spf13/cobra"
)

// Opener connects to the backing stores. The returned release function
// drains pending fan-out and closes connections.
type Opener func(ctx context.Context) (*bootstrap.Runtime, func(context.Context) error, error)

// RootOptions holds global flags and the runtime opener shared by all commands.
type RootOptions struct {
	Format string // "text" | "json" | "yaml"
	Open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// DefaultOpener loads configuration from the environment and connects with
// synchronous fan-out, so notifications are written before a command exits.
func DefaultOpener(ctx context.Context) (*bootstrap.Runtime, func(context.Context) error, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SyncFanout: true})
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}

// NewRootCommand creates the zingctl root command. A nil opener uses DefaultOpener.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = DefaultOpener
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "zingctl",
		Short: "zing administration",
		Long:  "Administer a zing deployment: schema migrations, user accounts, demo data, and views of feeds, trending posts and notifications.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewTrendingCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))

	return cmd
}

// withRuntime opens the stores, runs fn, and releases them.
func (o *RootOptions) withRuntime(ctx context.Context, fn func(*bootstrap.Runtime) error) (err error) {
	rt, release, err := o.Open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer func() {
		if cerr := release(ctx); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close runtime", cerr)
		}
	}()
	return fn(rt)
}
