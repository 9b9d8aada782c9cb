package cli

import (
	"context"
	"fmt"

	"zing/internal/bootstrap"
	"zing/internal/models"

	"github.com/spf13/cobra"
)

// PageOptions holds paging flags for listing commands.
type PageOptions struct {
	*RootOptions
	Page  int
	Limit int
}

func (o *PageOptions) bind(cmd *cobra.Command, defLimit int) {
	cmd.Flags().IntVar(&o.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&o.Limit, "limit", defLimit, "page size")
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "feed <username>",
		Short: "Show a user's home feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				user, err := lookupUser(ctx, rt, args[0])
				if err != nil {
					return err
				}
				page, err := rt.FeedService.Feed(ctx, user.ID, opts.Page, opts.Limit)
				if err != nil {
					return WrapExitError(ExitFailure, "feed failed", err)
				}
				lines := postLines(page.Posts)
				if page.HasMore {
					lines = append(lines, fmt.Sprintf("(more on page %d)", page.Page+1))
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(page, lines...)
			})
		},
	}
	opts.bind(cmd, 0)
	return cmd
}

// NewTrendingCommand creates the trending command.
func NewTrendingCommand(rootOpts *RootOptions) *cobra.Command {
	var viewer string
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show trending posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return rootOpts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				var viewerID string
				if viewer != "" {
					user, err := lookupUser(ctx, rt, viewer)
					if err != nil {
						return err
					}
					viewerID = user.ID
				}
				posts, err := rt.FeedService.Trending(ctx, viewerID)
				if err != nil {
					return WrapExitError(ExitFailure, "trending failed", err)
				}
				if posts == nil {
					posts = []*models.Post{}
				}
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(map[string]interface{}{"posts": posts}, postLines(posts)...)
			})
		},
	}
	cmd.Flags().StringVar(&viewer, "viewer", "", "username whose like state is shown")
	return cmd
}

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	PageOptions
	MarkRead bool
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{PageOptions: PageOptions{RootOptions: rootOpts}}
	cmd := &cobra.Command{
		Use:   "notifications <username>",
		Short: "Show a user's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt *bootstrap.Runtime) error {
				user, err := lookupUser(ctx, rt, args[0])
				if err != nil {
					return err
				}
				list, err := rt.NotificationService.List(ctx, user.ID, opts.Page, opts.Limit)
				if err != nil {
					return WrapExitError(ExitFailure, "listing notifications failed", err)
				}
				if list == nil {
					list = []*models.Notification{}
				}
				unread, err := rt.NotificationService.UnreadCount(ctx, user.ID)
				if err != nil {
					return WrapExitError(ExitFailure, "unread count failed", err)
				}

				lines := append(notificationLines(list), fmt.Sprintf("unread: %d", unread))
				if opts.MarkRead {
					n, err := rt.NotificationService.MarkAllRead(ctx, user.ID)
					if err != nil {
						return WrapExitError(ExitFailure, "mark read failed", err)
					}
					lines = append(lines, fmt.Sprintf("marked %d read", n))
				}

				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(map[string]interface{}{
					"notifications": list,
					"unread_count":  unread,
				}, lines...)
			})
		},
	}
	opts.bind(cmd, 20)
	cmd.Flags().BoolVar(&opts.MarkRead, "mark-read", false, "mark all notifications read after listing")
	return cmd
}

func lookupUser(ctx context.Context, rt *bootstrap.Runtime, username string) (*models.User, error) {
	user, err := rt.GraphService.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("user %q", username), err)
	}
	return user, nil
}
