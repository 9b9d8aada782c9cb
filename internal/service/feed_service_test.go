package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zing/internal/cache"
	"zing/internal/models"
	"zing/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_ContainsOnlyFollowedAndOwnTopLevelPosts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")

	_, err := h.graph.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	own := h.post(t, alice, "mine")
	fromBob := h.post(t, bob, "from bob")
	h.post(t, carol, "not followed")
	h.reply(t, bob, own.ID, "a reply stays out of feeds")
	latest := h.post(t, bob, "latest")

	page, err := h.feed.Feed(ctx, alice.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{latest.ID, fromBob.ID, own.ID}, postIDs(page.Posts))
	assert.Equal(t, 1, page.Page)
	assert.False(t, page.HasMore)

	for _, p := range page.Posts {
		assert.Contains(t, []string{alice.ID, bob.ID}, p.AuthorID)
		assert.Nil(t, p.ReplyToID)
	}
}

func TestFeedService_Paging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	p1 := h.post(t, alice, "one")
	p2 := h.post(t, alice, "two")
	p3 := h.post(t, alice, "three")

	first, err := h.feed.Feed(ctx, alice.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, []string{p3.ID, p2.ID}, postIDs(first.Posts))
	assert.True(t, first.HasMore)

	second, err := h.feed.Feed(ctx, alice.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, postIDs(second.Posts))
	assert.False(t, second.HasMore)

	beyond, err := h.feed.Feed(ctx, alice.ID, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Posts)
	assert.False(t, beyond.HasMore)

	huge, err := h.feed.Feed(ctx, alice.ID, math.MaxInt, 2)
	require.NoError(t, err)
	assert.Equal(t, MaxPage, huge.Page)
	assert.Empty(t, huge.Posts, "an oversized page is past the end, not page one")
}

func TestFeedService_UnknownViewer(t *testing.T) {
	h := newHarness(t)
	_, err := h.feed.Feed(context.Background(), "missing", 1, 20)
	assertCode(t, err, models.CodeNotFound)
}

func TestFeedService_RepostResolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	original := h.post(t, bob, "original")
	repost, err := h.posts.Repost(ctx, alice.ID, original.ID)
	require.NoError(t, err)

	page, err := h.feed.Feed(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	require.NotNil(t, page.Posts[0].Original)
	assert.Equal(t, original.ID, page.Posts[0].Original.ID)
	require.NotNil(t, page.Posts[0].Original.Author)
	assert.Equal(t, "bob", page.Posts[0].Original.Author.Username)

	require.NoError(t, h.posts.DeletePost(ctx, bob.ID, original.ID))

	page, err = h.feed.Feed(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, repost.ID, page.Posts[0].ID)
	assert.Nil(t, page.Posts[0].Original)
}

func TestFeedService_TrendingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")

	quiet := h.post(t, alice, "quiet")
	liked := h.post(t, alice, "liked")
	reposted := h.post(t, alice, "reposted")
	h.reply(t, bob, liked.ID, "replies never trend")

	for _, u := range []*models.User{bob, carol} {
		_, err := h.posts.ToggleLike(ctx, u.ID, liked.ID)
		require.NoError(t, err)
	}
	_, err := h.posts.ToggleLike(ctx, bob.ID, reposted.ID)
	require.NoError(t, err)
	_, err = h.posts.Repost(ctx, carol.ID, reposted.ID)
	require.NoError(t, err)
	_, err = h.posts.ToggleLike(ctx, carol.ID, quiet.ID)
	require.NoError(t, err)

	posts, err := h.feed.Trending(ctx, bob.ID)
	require.NoError(t, err)

	// liked:2 likes; reposted:1 like 1 repost; quiet:1 like; repost post:0
	require.Len(t, posts, 4)
	assert.Equal(t, liked.ID, posts[0].ID)
	assert.Equal(t, reposted.ID, posts[1].ID)
	assert.Equal(t, quiet.ID, posts[2].ID)
	assert.True(t, posts[3].IsRepost)

	assert.True(t, posts[0].Liked)
	assert.True(t, posts[1].Liked)
	assert.False(t, posts[2].Liked)
	require.NotNil(t, posts[3].Original)
	assert.True(t, posts[3].Original.Liked)
}

func TestFeedService_TrendingWindow(t *testing.T) {
	h := newHarness(t, func(cfg *FeedConfig) { cfg.TrendingWindow = 24 * time.Hour })
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	old := h.post(t, alice, "old but popular")
	_, err := h.posts.ToggleLike(ctx, bob.ID, old.ID)
	require.NoError(t, err)

	h.tdb.Clock.Advance(48 * time.Hour)
	fresh := h.post(t, alice, "fresh")

	posts, err := h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, postIDs(posts))
}

func TestFeedService_TrendingIsCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mr := h.withRedis(t, func(cfg *FeedConfig) {
		cfg.TrendingWindow = 24 * time.Hour
		cfg.TrendingTTL = time.Minute
	})
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	a := h.post(t, alice, "a")
	b := h.post(t, alice, "b")

	posts, err := h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, postIDs(posts))
	assert.True(t, mr.Exists(cache.TrendingKey(24)))

	_, err = h.posts.ToggleLike(ctx, bob.ID, a.ID)
	require.NoError(t, err)

	cached, err := h.feed.Trending(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, postIDs(cached), "ranking served from cache")
	assert.True(t, cached[1].Liked, "liked flag is applied per viewer")
	assert.Zero(t, cached[1].LikeCount)

	mr.FastForward(2 * time.Minute)

	fresh, err := h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, postIDs(fresh))

	_, err = h.posts.ToggleLike(ctx, bob.ID, b.ID)
	require.NoError(t, err)
	_, err = h.posts.ToggleLike(ctx, alice.ID, b.ID)
	require.NoError(t, err)
	h.feed.InvalidateTrending(ctx)

	fresh, err = h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, postIDs(fresh))
}

func TestFeedService_DeleteDropsCachedTrending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mr := h.withRedis(t, func(cfg *FeedConfig) {
		cfg.TrendingWindow = 24 * time.Hour
		cfg.TrendingTTL = time.Hour
	})
	alice := h.user(t, "alice")

	a := h.post(t, alice, "a")
	b := h.post(t, alice, "b")

	posts, err := h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, postIDs(posts))
	require.True(t, mr.Exists(cache.TrendingKey(24)))

	require.NoError(t, h.posts.DeletePost(ctx, alice.ID, b.ID))
	assert.False(t, mr.Exists(cache.TrendingKey(24)))

	posts, err = h.feed.Trending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, postIDs(posts))
}

func TestFeedService_FailedDeleteKeepsCachedTrending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mr := h.withRedis(t, func(cfg *FeedConfig) {
		cfg.TrendingWindow = 24 * time.Hour
		cfg.TrendingTTL = time.Hour
	})
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	a := h.post(t, alice, "a")

	_, err := h.feed.Trending(ctx, "")
	require.NoError(t, err)

	require.Error(t, h.posts.DeletePost(ctx, bob.ID, a.ID))
	assert.True(t, mr.Exists(cache.TrendingKey(24)))
}

type trendingRepoStub struct {
	repository.PostRepository
	calls   atomic.Int32
	release chan struct{}
	posts   []*models.Post
}

func (s *trendingRepoStub) Trending(_ context.Context, _ time.Time, _ int, _ string) ([]*models.Post, error) {
	s.calls.Add(1)
	<-s.release
	return s.posts, nil
}

func TestFeedService_TrendingCollapsesConcurrentMisses(t *testing.T) {
	stub := &trendingRepoStub{
		release: make(chan struct{}),
		posts:   []*models.Post{{ID: "p1"}, {ID: "p2"}},
	}
	svc := NewFeedService(stub, nil, nil, nil, FeedConfig{})

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([][]*models.Post, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			posts, err := svc.Trending(context.Background(), "")
			assert.NoError(t, err)
			results[i] = posts
		}(i)
	}
	started.Wait()
	// let the callers pile up on the in-flight query
	time.Sleep(50 * time.Millisecond)
	close(stub.release)
	wg.Wait()

	assert.LessOrEqual(t, stub.calls.Load(), int32(callers))
	assert.GreaterOrEqual(t, stub.calls.Load(), int32(1))
	for _, posts := range results {
		assert.Equal(t, []string{"p1", "p2"}, postIDs(posts))
	}

	// results are private copies
	results[0][0].Liked = true
	assert.False(t, stub.posts[0].Liked)
}
