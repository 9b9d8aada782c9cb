package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents a user in the Zing application. Registration and
// credentials live outside this module; the row only carries the public
// profile used by the social graph.
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null;size:30" json:"username"`
	DisplayName string    `gorm:"size:50" json:"display_name"`
	Bio         string    `gorm:"size:160" json:"bio"`
	Location    string    `gorm:"size:50" json:"location"`
	Website     string    `gorm:"size:100" json:"website"`
	Avatar      string    `json:"avatar"`
	Banner      string    `json:"banner"`
	Verified    bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// DisplayNameFold is DisplayName after FoldCase, for search.
	DisplayNameFold string `gorm:"type:text;not null;default:''" json:"-"`

	// FollowerCount is not persisted; computed at query time
	FollowerCount int64 `gorm:"->;-:migration" json:"follower_count"`
	// FollowingCount is not persisted; computed at query time
	FollowingCount int64 `gorm:"->;-:migration" json:"following_count"`
}

// BeforeCreate assigns a time-ordered ID when none is set and fills the
// search column.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.DisplayNameFold = FoldCase(u.DisplayName)
	return nil
}

// FoldCase lower-cases s with Unicode rules. Search columns hold folded text
// because SQLite's LOWER only folds ASCII.
func FoldCase(s string) string {
	return strings.ToLower(s)
}

// Name is the label used in notification messages.
func (u *User) Name() string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Profile is a user plus viewer-relative graph state.
type Profile struct {
	User        *User `json:"user"`
	IsFollowing bool  `json:"is_following"`
	PostCount   int64 `json:"post_count"`
}
