// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Follow is a directed follow edge: FollowerID follows FolloweeID.
// A user's following set and followers set are both projections of this
// table, so the two sides cannot disagree.
type Follow struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_follow_pair,priority:1" json:"follower_id"`
	FolloweeID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_follow_pair,priority:2;index:idx_follow_followee" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// BeforeCreate assigns a time-ordered ID when none is set.
func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	return nil
}
