// Package seed populates a zing database with demo data. Everything goes
// through the services, so seeded follows, likes and replies produce the
// same notifications real traffic would.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zing/internal/models"
	"zing/internal/observability"
	"zing/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configures the seeder.
type Options struct {
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	LikesPerPost   int
	// ReplyEvery makes every n-th post a reply to an earlier post. Zero disables replies.
	ReplyEvery int
	// RepostEvery reposts every n-th post from another user. Zero disables reposts.
	RepostEvery int
	// Seed makes the generated data reproducible.
	Seed int64
}

// DefaultOptions returns a small, well connected data set.
func DefaultOptions() Options {
	return Options{
		Users:          20,
		PostsPerUser:   5,
		FollowsPerUser: 6,
		LikesPerPost:   3,
		ReplyEvery:     4,
		RepostEvery:    7,
		Seed:           1,
	}
}

// Result summarizes what a seeding run wrote.
type Result struct {
	Users   []*models.User
	Posts   []*models.Post
	Follows int
	Likes   int
	Replies int
	Reposts int
}

// Summary is a printable view of a Result.
func (r *Result) Summary() map[string]int {
	return map[string]int{
		"users":   len(r.Users),
		"posts":   len(r.Posts),
		"follows": r.Follows,
		"likes":   r.Likes,
		"replies": r.Replies,
		"reposts": r.Reposts,
	}
}

// Seeder writes demo users and activity.
type Seeder struct {
	graph *service.GraphService
	posts *service.PostService
	faker *gofakeit.Faker
	opts  Options
}

// NewSeeder creates a Seeder that writes through the given services.
func NewSeeder(graph *service.GraphService, posts *service.PostService, opts Options) *Seeder {
	return &Seeder{
		graph: graph,
		posts: posts,
		faker: gofakeit.New(opts.Seed),
		opts:  opts,
	}
}

// Run seeds users, then follows, then posts with likes, replies and reposts.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if s.opts.Users < 1 {
		return nil, models.NewValidationError("At least one user is required")
	}
	observability.Logger.InfoContext(ctx, "Seeding database",
		slog.Int("users", s.opts.Users),
		slog.Int("posts_per_user", s.opts.PostsPerUser),
	)

	res := &Result{}
	users, err := s.seedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	res.Users = users

	if err := s.seedFollows(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to seed follows: %w", err)
	}
	if err := s.seedPosts(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}

	observability.Logger.InfoContext(ctx, "Seeding completed",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		first := s.faker.FirstName()
		last := s.faker.LastName()
		u, err := s.graph.EnsureUser(ctx, &models.User{
			Username:    username(first, i),
			DisplayName: truncate(first+" "+last, 50),
			Bio:         truncate(s.faker.Sentence(8), 160),
			Location:    truncate(s.faker.City(), 50),
			Website:     truncate(s.faker.URL(), 100),
			Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", strings.ToLower(first)),
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) seedFollows(ctx context.Context, res *Result) error {
	users := res.Users
	for i, u := range users {
		for _, j := range s.pickOthers(len(users), i, s.opts.FollowsPerUser) {
			if _, err := s.graph.Follow(ctx, u.ID, users[j].ID); err != nil {
				return err
			}
			res.Follows++
		}
	}
	return nil
}

func (s *Seeder) seedPosts(ctx context.Context, res *Result) error {
	users := res.Users
	n := 0
	for round := 0; round < s.opts.PostsPerUser; round++ {
		for i, author := range users {
			n++
			in := service.CreatePostInput{AuthorID: author.ID, Content: s.content(users, i)}
			if s.opts.ReplyEvery > 0 && n%s.opts.ReplyEvery == 0 && len(res.Posts) > 0 {
				in.ReplyToID = res.Posts[s.faker.Number(0, len(res.Posts)-1)].ID
			}

			created, err := s.posts.CreatePost(ctx, in)
			if err != nil {
				return err
			}
			post := created.Post
			res.Posts = append(res.Posts, post)
			if in.ReplyToID != "" {
				res.Replies++
			}

			for _, j := range s.pickOthers(len(users), i, s.opts.LikesPerPost) {
				if err := s.like(ctx, users[j].ID, post.ID); err != nil {
					return err
				}
				res.Likes++
			}

			if s.opts.RepostEvery > 0 && n%s.opts.RepostEvery == 0 && len(users) > 1 {
				reposter := users[(i+1)%len(users)]
				_, err := s.posts.Repost(ctx, reposter.ID, post.ID)
				switch {
				case err == nil:
					res.Reposts++
				case !models.IsCode(err, models.CodeDuplicate):
					return err
				}
			}
		}
	}
	return nil
}

// like leaves postID liked by userID even when an earlier run already liked it.
func (s *Seeder) like(ctx context.Context, userID, postID string) error {
	res, err := s.posts.ToggleLike(ctx, userID, postID)
	if err != nil {
		return err
	}
	if !res.Liked {
		_, err = s.posts.ToggleLike(ctx, userID, postID)
	}
	return err
}

func (s *Seeder) content(users []*models.User, author int) string {
	var b strings.Builder
	b.WriteString(s.faker.Sentence(s.faker.Number(5, 14)))
	if s.faker.Number(0, 2) == 0 {
		b.WriteString(" #")
		b.WriteString(strings.ToLower(s.faker.Word()))
	}
	if len(users) > 1 && s.faker.Number(0, 4) == 0 {
		others := s.pickOthers(len(users), author, 1)
		b.WriteString(" @")
		b.WriteString(users[others[0]].Username)
	}
	return truncate(b.String(), 280)
}

// pickOthers returns up to k distinct indexes in [0, n) other than self.
func (s *Seeder) pickOthers(n, self, k int) []int {
	pool := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != self {
			pool = append(pool, i)
		}
	}
	if k > len(pool) {
		k = len(pool)
	}
	for i := 0; i < k; i++ {
		j := s.faker.Number(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func username(first string, i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := truncate(b.String(), 20)
	if name == "" {
		name = "user"
	}
	return fmt.Sprintf("%s_%d", name, i+1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
