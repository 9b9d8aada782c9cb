package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"zing/internal/cache"
	"zing/internal/events"
	"zing/internal/keylock"
	"zing/internal/models"
	"zing/internal/repository"
	"zing/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness wires the services over one SQLite database with a synchronous
// dispatcher so notifications are visible as soon as a call returns.
type harness struct {
	tdb *testutil.TestDB

	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	notifRepo  repository.NotificationRepository

	cache         *cache.Cache
	notifications *NotificationService
	graph         *GraphService
	posts         *PostService
	feed          *FeedService
}

type harnessOption func(*FeedConfig)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	h := &harness{
		tdb:        tdb,
		userRepo:   repository.NewUserRepository(tdb.DB),
		followRepo: repository.NewFollowRepository(tdb.DB),
		postRepo:   repository.NewPostRepository(tdb.DB),
		notifRepo:  repository.NewNotificationRepository(tdb.DB),
	}
	h.notifications = NewNotificationService(h.notifRepo, nil)
	h.wire(t, opts...)
	return h
}

// withRedis rebuilds the services on a miniredis-backed cache.
func (h *harness) withRedis(t *testing.T, opts ...harnessOption) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h.cache = cache.New(client)
	h.notifications = NewNotificationService(h.notifRepo, h.cache)
	h.wire(t, opts...)
	return mr
}

func (h *harness) wire(t *testing.T, opts ...harnessOption) {
	t.Helper()
	dispatcher := events.NewDispatcher(h.notifications, events.DispatcherConfig{Sync: true})
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	locks := keylock.New(64)
	cfg := FeedConfig{Now: h.tdb.Clock.Peek}
	for _, o := range opts {
		o(&cfg)
	}
	h.graph = NewGraphService(h.userRepo, h.followRepo, h.postRepo, locks, dispatcher)
	h.posts = NewPostService(h.postRepo, h.userRepo, locks, dispatcher)
	h.feed = NewFeedService(h.postRepo, h.userRepo, h.followRepo, h.cache, cfg)
	h.posts.OnDelete(h.feed.InvalidateTrending)
}

func (h *harness) user(t *testing.T, username string) *models.User {
	return h.tdb.CreateUser(t, username)
}

func (h *harness) post(t *testing.T, author *models.User, content string) *models.Post {
	t.Helper()
	res, err := h.posts.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, Content: content})
	require.NoError(t, err)
	return res.Post
}

func (h *harness) reply(t *testing.T, author *models.User, parentID, content string) *models.Post {
	t.Helper()
	res, err := h.posts.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, Content: content, ReplyToID: parentID})
	require.NoError(t, err)
	return res.Post
}

// inbox returns all notifications for u, newest first.
func (h *harness) inbox(t *testing.T, u *models.User) []*models.Notification {
	t.Helper()
	list, err := h.notifications.List(context.Background(), u.ID, 1, MaxPageSize)
	require.NoError(t, err)
	return list
}

func notificationTypes(list []*models.Notification) []models.NotificationType {
	out := make([]models.NotificationType, 0, len(list))
	for _, n := range list {
		out = append(out, n.Type)
	}
	return out
}

func postIDs(posts []*models.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func userIDs(users []models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
