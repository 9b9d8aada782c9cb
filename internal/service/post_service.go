package service

import (
	"context"
	"strings"

	"zing/internal/events"
	"zing/internal/keylock"
	"zing/internal/models"
	"zing/internal/observability"
	"zing/internal/repository"
)

const (
	searchLimit    = 20
	userPostsLimit = 20
)

// PostService provides post, like, and repost business logic.
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	locks    *keylock.Striped
	events   Publisher

	onDelete func(context.Context)
}

// CreatePostInput is the input for CreatePost. ReplyToID is empty for a
// top-level post.
type CreatePostInput struct {
	AuthorID  string
	Content   string
	Images    []string
	ReplyToID string
}

// CreateResult describes a created post and who it concerns.
type CreateResult struct {
	Post           *models.Post
	MentionIDs     []string
	ParentAuthorID string
}

// LikeResult is the like state of a post for one user after a write.
type LikeResult struct {
	Liked     bool  `json:"is_liked"`
	LikeCount int64 `json:"like_count"`
}

// NewPostService returns a new PostService.
func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, locks *keylock.Striped, events Publisher) *PostService {
	if locks == nil {
		locks = keylock.New(0)
	}
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		locks:    locks,
		events:   events,
	}
}

// OnDelete registers fn to run after a post is deleted.
func (s *PostService) OnDelete(fn func(context.Context)) {
	s.onDelete = fn
}

// CreatePost validates content, extracts hashtags and mentions, and stores
// the post. Mentions of unknown usernames are dropped.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (result *CreateResult, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer span.Finish(&err)

	content := normalize(in.Content)
	if n := runeLen(content); n < 1 || n > models.MaxPostLength {
		return nil, models.NewValidationError("Content must be 1-280 characters")
	}

	actor, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	hashtags := extractHashtags(content)
	mentionIDs, err := s.resolveMentions(ctx, extractMentions(content))
	if err != nil {
		return nil, err
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}
	post := &models.Post{
		AuthorID: actor.ID,
		Content:  content,
		Images:   images,
	}
	if in.ReplyToID != "" {
		parentID := in.ReplyToID
		post.ReplyToID = &parentID
		unlock := s.locks.Lock(keylock.PostKey(parentID))
		defer unlock()
	}

	parentAuthorID, err := s.postRepo.Create(ctx, post, hashtags, mentionIDs)
	observability.RecordMutation("create_post", err)
	if err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, events.Event{
		Kind:           events.PostCreated,
		Actor:          actor,
		PostID:         created.ID,
		ParentAuthorID: parentAuthorID,
		MentionIDs:     mentionIDs,
	})

	return &CreateResult{
		Post:           created,
		MentionIDs:     mentionIDs,
		ParentAuthorID: parentAuthorID,
	}, nil
}

// resolveMentions maps usernames to user IDs in the order given.
func (s *PostService) resolveMentions(ctx context.Context, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return []string{}, nil
	}
	users, err := s.userRepo.GetByUsernames(ctx, usernames)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(users))
	for _, u := range users {
		byName[u.Username] = u.ID
	}

	ids := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, name := range usernames {
		id, ok := byName[name]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetPost returns a post with its replies, oldest reply first.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID string) (*models.PostDetail, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	replies, err := s.postRepo.Replies(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	return &models.PostDetail{Post: post, Replies: replies}, nil
}

// UserPosts returns the newest posts by username, reposts resolved.
func (s *PostService) UserPosts(ctx context.Context, username, viewerID string, page, pageSize int) ([]*models.Post, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	limit, offset := pageWindow(page, pageSize, userPostsLimit)
	return s.postRepo.ByAuthor(ctx, author.ID, limit, offset, viewerID)
}

// ToggleLike flips userID's like on postID. A new like notifies the author.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (result *LikeResult, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "ToggleLike")
	defer span.Finish(&err)

	actor, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.LikeKey(postID, userID))
	defer unlock()

	out, err := s.postRepo.ToggleLike(ctx, postID, userID)
	observability.RecordMutation("toggle_like", err)
	if err != nil {
		return nil, err
	}
	if out.Liked && out.Changed {
		publish(ctx, s.events, events.Event{
			Kind:     events.LikeAdded,
			Actor:    actor,
			PostID:   postID,
			TargetID: out.AuthorID,
		})
	}
	return &LikeResult{Liked: out.Liked, LikeCount: out.LikeCount}, nil
}

// Unlike removes userID's like on postID if present.
func (s *PostService) Unlike(ctx context.Context, userID, postID string) (result *LikeResult, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "Unlike")
	defer span.Finish(&err)

	var out repository.LikeOutcome
	err = s.locks.With(func() (err error) {
		out, err = s.postRepo.Unlike(ctx, postID, userID)
		observability.RecordMutation("unlike", err)
		return err
	}, keylock.LikeKey(postID, userID))
	if err != nil {
		return nil, err
	}
	return &LikeResult{Liked: false, LikeCount: out.LikeCount}, nil
}

// Repost creates userID's repost of postID. A user may repost a given post
// once; the original's author is notified.
func (s *PostService) Repost(ctx context.Context, userID, postID string) (repost *models.Post, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "Repost")
	defer span.Finish(&err)

	actor, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.RepostKey(postID, userID))
	defer unlock()

	created, originalAuthorID, err := s.postRepo.Repost(ctx, postID, userID)
	observability.RecordMutation("repost", err)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, events.Event{
		Kind:     events.RepostCreated,
		Actor:    actor,
		PostID:   postID,
		TargetID: originalAuthorID,
	})

	return s.postRepo.GetByID(ctx, created.ID, userID)
}

// DeletePost removes postID if userID authored it. Replies and reposts of
// it are kept. Functions registered with OnDelete run after the delete.
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) (err error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "DeletePost")
	defer span.Finish(&err)

	err = s.locks.With(func() error {
		_, err := s.postRepo.Delete(ctx, postID, userID)
		observability.RecordMutation("delete_post", err)
		return err
	}, keylock.PostKey(postID))
	if err != nil {
		return err
	}
	if s.onDelete != nil {
		s.onDelete(ctx)
	}
	return nil
}

// Search matches query against post content and hashtags, case-insensitively.
func (s *PostService) Search(ctx context.Context, query, viewerID string) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.postRepo.Search(ctx, query, searchLimit, viewerID)
}
