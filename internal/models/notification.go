package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType enumerates the events that produce notifications.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationRepost  NotificationType = "repost"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationRepost, NotificationReply, NotificationFollow, NotificationMention:
		return true
	}
	return false
}

// Notification is a pull-model notification for a single recipient.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID string           `gorm:"type:varchar(36);not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	SenderID    string           `gorm:"type:varchar(36);not null" json:"sender_id"`
	Sender      *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	PostID      *string          `gorm:"type:varchar(36)" json:"post_id,omitempty"`
	Message     string           `gorm:"not null" json:"message"`
	Read        bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt   time.Time        `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}

// BeforeCreate assigns a time-ordered ID when none is set.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}
