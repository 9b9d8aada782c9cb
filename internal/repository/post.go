package repository

import (
	"context"
	"time"

	"zing/internal/models"
	"zing/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeOutcome is the state of a (post, user) like after a write.
type LikeOutcome struct {
	Liked     bool
	Changed   bool
	LikeCount int64
	AuthorID  string
}

// PostRepository defines the interface for post data operations.
// viewerID may be empty; it only drives the computed Liked flag.
type PostRepository interface {
	// Create writes the post with its hashtags and mentions in one
	// transaction. For a reply it returns the parent's author ID.
	Create(ctx context.Context, post *models.Post, hashtags, mentionIDs []string) (parentAuthorID string, err error)
	GetByID(ctx context.Context, id, viewerID string) (*models.Post, error)
	Replies(ctx context.Context, parentID, viewerID string) ([]*models.Post, error)
	ByAuthor(ctx context.Context, authorID string, limit, offset int, viewerID string) ([]*models.Post, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
	Feed(ctx context.Context, authorIDs []string, limit, offset int, viewerID string) ([]*models.Post, error)
	Trending(ctx context.Context, since time.Time, limit int, viewerID string) ([]*models.Post, error)
	Search(ctx context.Context, query string, limit int, viewerID string) ([]*models.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (LikeOutcome, error)
	Unlike(ctx context.Context, postID, userID string) (LikeOutcome, error)
	GetLikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error)
	// Repost creates the repost post and its reposts record together and
	// returns the repost with the original's author ID.
	Repost(ctx context.Context, originalID, userID string) (*models.Post, string, error)
	// Delete removes the post if userID authored it.
	Delete(ctx context.Context, postID, userID string) (*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func applyPostDetails(db *gorm.DB, viewerID string) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count, " +
		"(SELECT COUNT(*) FROM reposts WHERE reposts.post_id = posts.id) AS repost_count, " +
		"(SELECT COUNT(*) FROM posts AS replies WHERE replies.reply_to_id = posts.id) AS reply_count"

	if viewerID != "" {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func (r *postRepository) query(ctx context.Context, viewerID string) *gorm.DB {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }
	return applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), viewerID).
		Preload("Author").
		Preload("Tags", byPosition).
		Preload("Mentions", byPosition)
}

// finish fills hashtag and mention projections and attaches repost originals.
func (r *postRepository) finish(ctx context.Context, posts []*models.Post, viewerID string) error {
	var originalIDs []string
	for _, p := range posts {
		project(p)
		if p.IsRepost && p.OriginalPostID != nil {
			originalIDs = append(originalIDs, *p.OriginalPostID)
		}
	}
	if len(originalIDs) == 0 {
		return nil
	}

	var originals []*models.Post
	if err := r.query(ctx, viewerID).Where("posts.id IN ?", originalIDs).Find(&originals).Error; err != nil {
		return models.NewInternalError(err)
	}
	byID := make(map[string]*models.Post, len(originals))
	for _, o := range originals {
		project(o)
		byID[o.ID] = o
	}
	for _, p := range posts {
		if p.IsRepost && p.OriginalPostID != nil {
			p.Original = byID[*p.OriginalPostID]
		}
	}
	return nil
}

func project(p *models.Post) {
	p.Hashtags = make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		p.Hashtags = append(p.Hashtags, t.Tag)
	}
	p.MentionIDs = make([]string, 0, len(p.Mentions))
	for _, m := range p.Mentions {
		p.MentionIDs = append(p.MentionIDs, m.UserID)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
}

func (r *postRepository) list(ctx context.Context, viewerID string, build func(*gorm.DB) *gorm.DB) ([]*models.Post, error) {
	var posts []*models.Post
	if err := build(r.query(ctx, viewerID)).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.finish(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, hashtags, mentionIDs []string) (string, error) {
	var parentAuthorID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if post.ReplyToID != nil {
			var parent models.Post
			if err := tx.Select("id", "author_id").Where("id = ?", *post.ReplyToID).First(&parent).Error; err != nil {
				return translateError(err, "Post", *post.ReplyToID)
			}
			parentAuthorID = parent.AuthorID
		}

		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}

		if len(hashtags) > 0 {
			tags := make([]models.PostHashtag, 0, len(hashtags))
			for i, tag := range hashtags {
				tags = append(tags, models.PostHashtag{PostID: post.ID, Tag: tag, Position: i})
			}
			if err := tx.Create(&tags).Error; err != nil {
				return err
			}
		}

		if len(mentionIDs) > 0 {
			mentions := make([]models.PostMention, 0, len(mentionIDs))
			for i, id := range mentionIDs {
				mentions = append(mentions, models.PostMention{PostID: post.ID, UserID: id, Position: i})
			}
			if err := tx.Create(&mentions).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", translateError(err, "Post", post.ID)
	}

	post.Hashtags = append([]string{}, hashtags...)
	post.MentionIDs = append([]string{}, mentionIDs...)
	if post.Images == nil {
		post.Images = []string{}
	}
	return parentAuthorID, nil
}

func (r *postRepository) GetByID(ctx context.Context, id, viewerID string) (*models.Post, error) {
	var post models.Post
	if err := r.query(ctx, viewerID).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, translateError(err, "Post", id)
	}
	if err := r.finish(ctx, []*models.Post{&post}, viewerID); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Replies(ctx context.Context, parentID, viewerID string) ([]*models.Post, error) {
	return r.list(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.reply_to_id = ?", parentID).Order("posts.created_at ASC, posts.id ASC")
	})
}

func (r *postRepository) ByAuthor(ctx context.Context, authorID string, limit, offset int, viewerID string) ([]*models.Post, error) {
	return r.list(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id = ?", authorID).
			Order("posts.created_at DESC, posts.id DESC").
			Limit(clampLimit(limit, 20, 100)).
			Offset(offset)
	})
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) Feed(ctx context.Context, authorIDs []string, limit, offset int, viewerID string) ([]*models.Post, error) {
	defer observability.TrackQuery("feed", "posts")()
	if len(authorIDs) == 0 {
		return []*models.Post{}, nil
	}
	return r.list(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id IN ? AND posts.reply_to_id IS NULL", authorIDs).
			Order("posts.created_at DESC, posts.id DESC").
			Limit(limit).
			Offset(offset)
	})
}

// Trending ranks top-level posts created at or after since (zero means
// no bound) by like count, then repost count, then recency.
func (r *postRepository) Trending(ctx context.Context, since time.Time, limit int, viewerID string) ([]*models.Post, error) {
	defer observability.TrackQuery("trending", "posts")()
	return r.list(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		db = db.Where("posts.reply_to_id IS NULL")
		if !since.IsZero() {
			db = db.Where("posts.created_at >= ?", since)
		}
		return db.Order("like_count DESC, repost_count DESC, posts.created_at DESC, posts.id DESC").
			Limit(clampLimit(limit, 20, 100))
	})
}

func (r *postRepository) Search(ctx context.Context, query string, limit int, viewerID string) ([]*models.Post, error) {
	defer observability.TrackQuery("search", "posts")()
	pattern := likePattern(query)
	return r.list(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where(`posts.content_fold LIKE ? ESCAPE '\' OR EXISTS (SELECT 1 FROM post_hashtags WHERE post_hashtags.post_id = posts.id AND post_hashtags.tag LIKE ? ESCAPE '\')`, pattern, pattern).
			Order("posts.created_at DESC, posts.id DESC").
			Limit(clampLimit(limit, 20, 100))
	})
}

func (r *postRepository) GetLikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error) {
	if userID == "" || len(postIDs) == 0 {
		return nil, nil
	}
	var liked []string
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

func lookupAuthor(tx *gorm.DB, postID string) (string, error) {
	var post models.Post
	if err := tx.Select("id", "author_id").Where("id = ?", postID).First(&post).Error; err != nil {
		return "", translateError(err, "Post", postID)
	}
	return post.AuthorID, nil
}

func countLikes(tx *gorm.DB, postID string) (int64, error) {
	var count int64
	err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (LikeOutcome, error) {
	var out LikeOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authorID, err := lookupAuthor(tx, postID)
		if err != nil {
			return err
		}
		out.AuthorID = authorID
		out.Changed = true

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Like{PostID: postID, UserID: userID}).Error; err != nil {
				return err
			}
			out.Liked = true
		}

		out.LikeCount, err = countLikes(tx, postID)
		return err
	})
	if err != nil {
		return LikeOutcome{}, translateError(err, "Like", postID)
	}
	return out, nil
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID string) (LikeOutcome, error) {
	var out LikeOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authorID, err := lookupAuthor(tx, postID)
		if err != nil {
			return err
		}
		out.AuthorID = authorID

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		out.Changed = res.RowsAffected > 0

		out.LikeCount, err = countLikes(tx, postID)
		return err
	})
	if err != nil {
		return LikeOutcome{}, translateError(err, "Like", postID)
	}
	return out, nil
}

func (r *postRepository) Repost(ctx context.Context, originalID, userID string) (*models.Post, string, error) {
	var repost *models.Post
	var originalAuthorID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authorID, err := lookupAuthor(tx, originalID)
		if err != nil {
			return err
		}
		originalAuthorID = authorID

		var existing int64
		if err := tx.Model(&models.Repost{}).Where("post_id = ? AND user_id = ?", originalID, userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.NewDuplicateError("Already reposted")
		}

		original := originalID
		repost = &models.Post{
			AuthorID:       userID,
			Content:        "",
			Images:         []string{},
			IsRepost:       true,
			OriginalPostID: &original,
		}
		if err := tx.Omit(clause.Associations).Create(repost).Error; err != nil {
			return err
		}

		record := models.Repost{PostID: originalID, UserID: userID, RepostPostID: repost.ID}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewDuplicateError("Already reposted")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, "", translateError(err, "Post", originalID)
	}
	repost.Hashtags = []string{}
	repost.MentionIDs = []string{}
	return repost, originalAuthorID, nil
}

func (r *postRepository) Delete(ctx context.Context, postID, userID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", postID).First(&post).Error; err != nil {
			return translateError(err, "Post", postID)
		}
		if post.AuthorID != userID {
			return models.NewForbiddenError("Not authorized to delete this post")
		}

		steps := []struct {
			query string
			model interface{}
		}{
			{"post_id = ?", &models.PostHashtag{}},
			{"post_id = ?", &models.PostMention{}},
			{"post_id = ?", &models.Like{}},
			{"post_id = ?", &models.Repost{}},
			{"repost_post_id = ?", &models.Repost{}},
			{"id = ?", &models.Post{}},
		}
		for _, s := range steps {
			if err := tx.Where(s.query, postID).Delete(s.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err, "Post", postID)
	}
	return &post, nil
}
