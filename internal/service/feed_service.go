package service

import (
	"context"
	"time"

	"zing/internal/cache"
	"zing/internal/models"
	"zing/internal/observability"
	"zing/internal/repository"

	"golang.org/x/sync/singleflight"
)

// FeedConfig tunes feed paging and the trending window.
type FeedConfig struct {
	PageSize int
	// TrendingWindow bounds trending to posts newer than now minus the
	// window. Zero means no bound.
	TrendingWindow time.Duration
	TrendingTTL    time.Duration
	TrendingLimit  int
	Now            func() time.Time
}

// DefaultFeedConfig returns the production defaults.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		PageSize:       DefaultPageSize,
		TrendingWindow: 7 * 24 * time.Hour,
		TrendingTTL:    30 * time.Second,
		TrendingLimit:  20,
		Now:            time.Now,
	}
}

// FeedPage is one page of a home feed.
type FeedPage struct {
	Posts   []*models.Post `json:"posts"`
	Page    int            `json:"page"`
	HasMore bool           `json:"has_more"`
}

// FeedService assembles home feeds and ranks trending posts.
type FeedService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	cache      *cache.Cache
	cfg        FeedConfig
	group      singleflight.Group
}

// NewFeedService returns a new FeedService. c may be nil to disable caching.
func NewFeedService(postRepo repository.PostRepository, userRepo repository.UserRepository, followRepo repository.FollowRepository, c *cache.Cache, cfg FeedConfig) *FeedService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &FeedService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		cache:      c,
		cfg:        cfg,
	}
}

// Feed returns top-level posts by viewerID and everyone viewerID follows,
// newest first. page is clamped with ClampPage.
func (s *FeedService) Feed(ctx context.Context, viewerID string, page, pageSize int) (feed *FeedPage, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "FeedService", "Feed")
	defer span.Finish(&err)

	ok, err := s.userRepo.Exists(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("User", viewerID)
	}

	authorIDs, err := s.followRepo.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authorIDs = append(authorIDs, viewerID)

	page = ClampPage(page)
	limit, offset := pageWindow(page, pageSize, s.cfg.PageSize)
	posts, err := s.postRepo.Feed(ctx, authorIDs, limit, offset, viewerID)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Posts: posts, Page: page, HasMore: len(posts) == limit}, nil
}

// Trending returns the most liked, then most reposted, top-level posts in
// the configured window. The viewer-independent ranking is cached; Liked
// flags are applied per viewer.
func (s *FeedService) Trending(ctx context.Context, viewerID string) (posts []*models.Post, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "FeedService", "Trending")
	defer span.Finish(&err)

	ranked, err := s.ranked(ctx)
	if err != nil {
		return nil, err
	}
	return s.personalize(ctx, ranked, viewerID)
}

// InvalidateTrending drops the cached ranking.
func (s *FeedService) InvalidateTrending(ctx context.Context) {
	s.cache.Invalidate(ctx, s.trendingKey())
}

func (s *FeedService) trendingKey() string {
	return cache.TrendingKey(int(s.cfg.TrendingWindow / time.Hour))
}

// ranked returns the shared ranking. Concurrent misses are collapsed into
// one database query; callers must not modify the returned posts.
func (s *FeedService) ranked(ctx context.Context) ([]*models.Post, error) {
	key := s.trendingKey()
	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var posts []*models.Post
		err := s.cache.Aside(ctx, key, &posts, s.cfg.TrendingTTL, func() error {
			var since time.Time
			if s.cfg.TrendingWindow > 0 {
				since = s.cfg.Now().Add(-s.cfg.TrendingWindow)
			}
			var err error
			posts, err = s.postRepo.Trending(ctx, since, s.cfg.TrendingLimit, "")
			return err
		})
		return posts, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Post), nil
}

// personalize copies the shared posts and sets Liked for viewerID.
func (s *FeedService) personalize(ctx context.Context, shared []*models.Post, viewerID string) ([]*models.Post, error) {
	out := make([]*models.Post, 0, len(shared))
	ids := make([]string, 0, len(shared))
	for _, p := range shared {
		cp := *p
		if p.Original != nil {
			orig := *p.Original
			cp.Original = &orig
			ids = append(ids, orig.ID)
		}
		out = append(out, &cp)
		ids = append(ids, cp.ID)
	}
	if viewerID == "" || len(out) == 0 {
		return out, nil
	}

	likedIDs, err := s.postRepo.GetLikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	liked := make(map[string]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}
	for _, p := range out {
		p.Liked = liked[p.ID]
		if p.Original != nil {
			p.Original.Liked = liked[p.Original.ID]
		}
	}
	return out, nil
}
