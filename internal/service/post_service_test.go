package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"zing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreateExtractsTagsAndMentions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	res, err := h.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Content: "hello #Test @bob world"})
	require.NoError(t, err)

	assert.Equal(t, "hello #Test @bob world", res.Post.Content)
	assert.Equal(t, []string{"test"}, res.Post.Hashtags)
	assert.Equal(t, []string{bob.ID}, res.Post.MentionIDs)
	assert.Equal(t, []string{bob.ID}, res.MentionIDs)
	assert.Empty(t, res.ParentAuthorID)
	require.NotNil(t, res.Post.Author)
	assert.Equal(t, "alice", res.Post.Author.Username)
	assert.Equal(t, []string{}, res.Post.Images)

	inbox := h.inbox(t, bob)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationMention, inbox[0].Type)
	assert.Equal(t, "Alice mentioned you in a post", inbox[0].Message)
	require.NotNil(t, inbox[0].PostID)
	assert.Equal(t, res.Post.ID, *inbox[0].PostID)
	require.NotNil(t, inbox[0].Sender)
	assert.Equal(t, alice.ID, inbox[0].Sender.ID)
}

func TestPostService_CreateMentionEdgeCases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	res, err := h.posts.CreatePost(ctx, CreatePostInput{
		AuthorID: alice.ID,
		Content:  "@ghost @bob @alice @bob @Bob #a #A",
	})
	require.NoError(t, err)

	// unknown and differently-cased usernames are dropped, duplicates collapse
	assert.Equal(t, []string{bob.ID, alice.ID}, res.MentionIDs)
	assert.Equal(t, []string{"a"}, res.Post.Hashtags)

	assert.Len(t, h.inbox(t, bob), 1)
	assert.Empty(t, h.inbox(t, alice), "self-mention must not notify")
}

func TestPostService_CreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty", "", true},
		{"one char", "x", false},
		{"whitespace counts", "   ", false},
		{"at limit", strings.Repeat("a", 280), false},
		{"over limit", strings.Repeat("a", 281), true},
		{"multi-byte at limit", strings.Repeat("\u00e9", 280), false},
		{"decomposed normalizes to limit", strings.Repeat("e\u0301", 280), false},
		{"emoji over limit", strings.Repeat("\U0001F600", 281), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Content: tt.content})
			if tt.wantErr {
				assertValidationError(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := h.posts.CreatePost(ctx, CreatePostInput{AuthorID: "missing", Content: "hi"})
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_Reply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	parent := h.post(t, alice, "parent")
	res, err := h.posts.CreatePost(ctx, CreatePostInput{AuthorID: bob.ID, Content: "nice", ReplyToID: parent.ID})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.ParentAuthorID)
	require.NotNil(t, res.Post.ReplyToID)
	assert.Equal(t, parent.ID, *res.Post.ReplyToID)

	inbox := h.inbox(t, alice)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationReply, inbox[0].Type)
	assert.Equal(t, "Bob replied to your post", inbox[0].Message)
	assert.Equal(t, res.Post.ID, *inbox[0].PostID)

	// replying to yourself is silent
	h.reply(t, alice, parent.ID, "thanks")
	assert.Len(t, h.inbox(t, alice), 1)

	detail, err := h.posts.GetPost(ctx, parent.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.Post.ReplyCount)
	require.Len(t, detail.Replies, 2)
	assert.Equal(t, "nice", detail.Replies[0].Content)
	assert.Equal(t, "thanks", detail.Replies[1].Content)

	_, err = h.posts.CreatePost(ctx, CreatePostInput{AuthorID: bob.ID, Content: "lost", ReplyToID: "missing"})
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_ReplyThatMentionsParentAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	parent := h.post(t, alice, "parent")
	h.reply(t, bob, parent.ID, "agreed @alice")

	types := notificationTypes(h.inbox(t, alice))
	assert.ElementsMatch(t, []models.NotificationType{models.NotificationReply, models.NotificationMention}, types)

	_, err := h.posts.GetPost(ctx, "missing", "")
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_ToggleLike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	post := h.post(t, alice, "like me")

	res, err := h.posts.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, LikeCount: 1}, res)

	inbox := h.inbox(t, alice)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationLike, inbox[0].Type)
	assert.Equal(t, "Bob liked your post", inbox[0].Message)

	res, err = h.posts.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: false, LikeCount: 0}, res)
	assert.Len(t, h.inbox(t, alice), 1, "unlike must not notify")

	// self-like counts but is silent
	res, err = h.posts.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Len(t, h.inbox(t, alice), 1)

	viewed, err := h.posts.GetPost(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, viewed.Post.Liked)
	assert.Equal(t, int64(1), viewed.Post.LikeCount)

	_, err = h.posts.ToggleLike(ctx, bob.ID, "missing")
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_Unlike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	post := h.post(t, alice, "like me")

	_, err := h.posts.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := h.posts.Unlike(ctx, bob.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, &LikeResult{Liked: false, LikeCount: 0}, res)
	}
}

func TestPostService_ConcurrentLikes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	post := h.post(t, alice, "popular")

	likers := make([]*models.User, 10)
	for i := range likers {
		likers[i] = h.user(t, "liker"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for _, u := range likers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.posts.ToggleLike(ctx, id, post.ID)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	detail, err := h.posts.GetPost(ctx, post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), detail.Post.LikeCount)
	assert.Len(t, h.inbox(t, alice), 10)
}

func TestPostService_ConcurrentTogglesBySameUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	post := h.post(t, alice, "flip")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.posts.ToggleLike(ctx, bob.ID, post.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	detail, err := h.posts.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, detail.Post.Liked)
	assert.Zero(t, detail.Post.LikeCount)
	assert.Len(t, h.inbox(t, alice), 4)
}

func TestPostService_Repost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	original := h.post(t, alice, "share this")

	repost, err := h.posts.Repost(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.True(t, repost.IsRepost)
	assert.Empty(t, repost.Content)
	assert.Equal(t, bob.ID, repost.AuthorID)
	require.NotNil(t, repost.Original)
	assert.Equal(t, original.ID, repost.Original.ID)
	assert.Equal(t, int64(1), repost.Original.RepostCount)
	require.NotNil(t, repost.Original.Author)
	assert.Equal(t, "alice", repost.Original.Author.Username)

	inbox := h.inbox(t, alice)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationRepost, inbox[0].Type)
	assert.Equal(t, "Bob reposted your post", inbox[0].Message)
	assert.Equal(t, original.ID, *inbox[0].PostID)

	_, err = h.posts.Repost(ctx, bob.ID, original.ID)
	assertCode(t, err, models.CodeDuplicate)
	assert.Len(t, h.inbox(t, alice), 1)

	// self-repost is allowed and silent
	_, err = h.posts.Repost(ctx, alice.ID, original.ID)
	require.NoError(t, err)
	assert.Len(t, h.inbox(t, alice), 1)

	_, err = h.posts.Repost(ctx, bob.ID, "missing")
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_ConcurrentRepostsAreUnique(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	original := h.post(t, alice, "once")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dupes := 0, 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.posts.Repost(ctx, bob.ID, original.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if models.IsCode(err, models.CodeDuplicate) {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 5, dupes)
	assert.Len(t, h.inbox(t, alice), 1)
}

func TestPostService_DeletePost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	post := h.post(t, alice, "temporary")
	reply := h.reply(t, bob, post.ID, "reply stays")

	err := h.posts.DeletePost(ctx, bob.ID, post.ID)
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, h.posts.DeletePost(ctx, alice.ID, post.ID))

	_, err = h.posts.GetPost(ctx, post.ID, "")
	assertCode(t, err, models.CodeNotFound)

	err = h.posts.DeletePost(ctx, alice.ID, post.ID)
	assertCode(t, err, models.CodeNotFound)

	kept, err := h.posts.GetPost(ctx, reply.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "reply stays", kept.Post.Content)
}

func TestPostService_DeletedRepostCanBeRepeated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	original := h.post(t, alice, "again")

	repost, err := h.posts.Repost(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	require.NoError(t, h.posts.DeletePost(ctx, bob.ID, repost.ID))

	_, err = h.posts.Repost(ctx, bob.ID, original.ID)
	require.NoError(t, err)
}

func TestPostService_Search(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	p1 := h.post(t, alice, "Learning #Golang today")
	p2 := h.reply(t, bob, p1.ID, "golang is fun")
	h.post(t, bob, "unrelated")

	posts, err := h.posts.Search(ctx, "GOLANG", "")
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID, p1.ID}, postIDs(posts))

	posts, err = h.posts.Search(ctx, "100%", "")
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = h.posts.Search(ctx, "", "")
	assertValidationError(t, err)
}

func TestPostService_UserPosts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	first := h.post(t, alice, "first")
	second := h.post(t, alice, "second")
	h.post(t, bob, "not alice")
	repost, err := h.posts.Repost(ctx, alice.ID, first.ID)
	require.NoError(t, err)

	posts, err := h.posts.UserPosts(ctx, "alice", "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{repost.ID, second.ID, first.ID}, postIDs(posts))
	require.NotNil(t, posts[0].Original)
	assert.Equal(t, first.ID, posts[0].Original.ID)

	_, err = h.posts.UserPosts(ctx, "nobody", "", 1, 0)
	assertCode(t, err, models.CodeNotFound)
}
