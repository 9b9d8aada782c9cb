package cli

import (
	"fmt"

	"zing/internal/bootstrap"
	"zing/internal/database"
	"zing/internal/seed"

	"github.com/spf13/cobra"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	seed.Options
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts, Options: seed.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo users and activity",
		Long: `Create demo users, follows, posts, likes, replies and reposts.

Writes go through the same services as the API, so the seeded
activity also produces notifications. Users are matched by username,
so re-running with the same --seed reuses them.

Examples:
  zingctl seed
  zingctl seed --users 100 --posts 10 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "number of users")
	f.IntVar(&opts.PostsPerUser, "posts", opts.PostsPerUser, "posts per user")
	f.IntVar(&opts.FollowsPerUser, "follows", opts.FollowsPerUser, "accounts each user follows")
	f.IntVar(&opts.LikesPerPost, "likes", opts.LikesPerPost, "likes per post")
	f.IntVar(&opts.ReplyEvery, "reply-every", opts.ReplyEvery, "make every n-th post a reply (0 disables)")
	f.IntVar(&opts.RepostEvery, "repost-every", opts.RepostEvery, "repost every n-th post (0 disables)")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
		if err := database.Migrate(ctx, rt.DB); err != nil {
			return WrapExitError(ExitCommandError, "migration failed", err)
		}
		res, err := seed.NewSeeder(rt.GraphService, rt.PostService, opts.Options).Run(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "seeding failed", err)
		}

		summary := res.Summary()
		lines := append([]string{fmt.Sprintf("seeded with seed %d", opts.Seed)}, countLines(summary)...)
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.Success(summary, lines...)
	})
}
