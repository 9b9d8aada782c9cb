package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxPostLength is the content limit in Unicode code points.
const MaxPostLength = 280

// Post represents a post, reply, or repost. A reply has ReplyToID set; a
// repost has IsRepost set, empty content, and OriginalPostID set.
type Post struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID       string   `gorm:"type:varchar(36);not null;index:idx_posts_author_created,priority:1" json:"author_id"`
	Author         *User    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content        string   `gorm:"type:text;not null" json:"content"`
	ContentFold    string   `gorm:"type:text;not null;default:''" json:"-"`
	Images         []string `gorm:"serializer:json;type:text" json:"images"`
	ReplyToID      *string  `gorm:"type:varchar(36);index" json:"reply_to,omitempty"`
	IsRepost       bool     `gorm:"not null;default:false" json:"is_repost"`
	OriginalPostID *string  `gorm:"type:varchar(36);index" json:"original_post_id,omitempty"`

	Tags     []PostHashtag `gorm:"foreignKey:PostID" json:"-"`
	Mentions []PostMention `gorm:"foreignKey:PostID" json:"-"`

	// Hashtags and MentionIDs are projections of Tags and Mentions.
	Hashtags   []string `gorm:"-" json:"hashtags"`
	MentionIDs []string `gorm:"-" json:"mentions"`

	// Original is the resolved repost target; nil when it no longer exists.
	Original *Post `gorm:"-" json:"original_post,omitempty"`

	// LikeCount is not persisted; computed at query time
	LikeCount int64 `gorm:"->;-:migration" json:"like_count"`
	// RepostCount is not persisted; computed at query time
	RepostCount int64 `gorm:"->;-:migration" json:"repost_count"`
	// ReplyCount is not persisted; computed at query time
	ReplyCount int64 `gorm:"->;-:migration" json:"reply_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`

	CreatedAt time.Time `gorm:"index:idx_posts_author_created,priority:2;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered ID when none is set and fills the
// search column.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	p.ContentFold = FoldCase(p.Content)
	return nil
}

// IsTopLevel reports whether the post is not a reply.
func (p *Post) IsTopLevel() bool {
	return p.ReplyToID == nil
}

// PostHashtag indexes a lower-cased hashtag of a post.
type PostHashtag struct {
	PostID   string `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	Tag      string `gorm:"primaryKey;size:280;index" json:"tag"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

// TableName specifies the table name for GORM
func (PostHashtag) TableName() string {
	return "post_hashtags"
}

// PostMention records a user resolved from an @username token.
type PostMention struct {
	PostID   string `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	UserID   string `gorm:"primaryKey;type:varchar(36);index" json:"user_id"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

// TableName specifies the table name for GORM
func (PostMention) TableName() string {
	return "post_mentions"
}

// Like represents a user's like on a post.
// The combination of PostID and UserID is unique.
type Like struct {
	PostID    string    `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	UserID    string    `gorm:"primaryKey;type:varchar(36);index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Repost is the (user, time) record appended to the original post when a
// user reposts it. RepostPostID points at the repost Post row.
type Repost struct {
	PostID       string    `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	UserID       string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	RepostPostID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"repost_post_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PostDetail is a post with its direct replies, oldest first.
type PostDetail struct {
	Post    *Post   `json:"post"`
	Replies []*Post `json:"replies"`
}
