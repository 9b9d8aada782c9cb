// Package events turns mutation results into notification intents and
// delivers them to the notification store off the mutation's path.
package events

import (
	"zing/internal/models"
)

// Kind identifies the mutation an Event describes.
type Kind int

const (
	// PostCreated covers top-level posts and replies.
	PostCreated Kind = iota + 1
	// LikeAdded is a like transition from absent to present.
	LikeAdded
	// RepostCreated is a new repost of an original post.
	RepostCreated
	// FollowCreated is a follow transition from not-following to following.
	FollowCreated
)

func (k Kind) String() string {
	switch k {
	case PostCreated:
		return "post_created"
	case LikeAdded:
		return "like_added"
	case RepostCreated:
		return "repost_created"
	case FollowCreated:
		return "follow_created"
	}
	return "unknown"
}

// Event is the result of a successful mutation.
type Event struct {
	Kind Kind
	// Actor performed the mutation. Its display name goes into messages.
	Actor *models.User
	// PostID is the created post, the liked post, or the reposted original.
	// Empty for follows.
	PostID string
	// ParentAuthorID is set when a reply was created.
	ParentAuthorID string
	// MentionIDs are the resolved mentioned users of a created post.
	MentionIDs []string
	// TargetID is the author of the liked or reposted post, or the followed user.
	TargetID string
}

// Intent is a request to create one notification.
type Intent struct {
	RecipientID string
	SenderID    string
	Type        models.NotificationType
	PostID      *string
	Message     string
}

// Notification converts the intent into a storable notification.
func (i Intent) Notification() *models.Notification {
	return &models.Notification{
		RecipientID: i.RecipientID,
		SenderID:    i.SenderID,
		Type:        i.Type,
		PostID:      i.PostID,
		Message:     i.Message,
	}
}

// Route derives the notification intents for ev. Every rule applies
// independently, and no intent is ever addressed to the actor.
func Route(ev Event) []Intent {
	intents, _ := route(ev)
	return intents
}

// route also returns the types of intents dropped because the recipient
// was the actor.
func route(ev Event) (intents []Intent, suppressed []models.NotificationType) {
	if ev.Actor == nil || ev.Actor.ID == "" {
		return nil, nil
	}
	actorID := ev.Actor.ID
	name := ev.Actor.Name()

	var postRef *string
	if ev.PostID != "" {
		id := ev.PostID
		postRef = &id
	}

	add := func(recipient string, typ models.NotificationType, message string, post *string) {
		if recipient == "" {
			return
		}
		if recipient == actorID {
			suppressed = append(suppressed, typ)
			return
		}
		intents = append(intents, Intent{
			RecipientID: recipient,
			SenderID:    actorID,
			Type:        typ,
			PostID:      post,
			Message:     message,
		})
	}

	switch ev.Kind {
	case PostCreated:
		if ev.ParentAuthorID != "" {
			add(ev.ParentAuthorID, models.NotificationReply, name+" replied to your post", postRef)
		}
		seen := make(map[string]struct{}, len(ev.MentionIDs))
		for _, id := range ev.MentionIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			add(id, models.NotificationMention, name+" mentioned you in a post", postRef)
		}
	case LikeAdded:
		add(ev.TargetID, models.NotificationLike, name+" liked your post", postRef)
	case RepostCreated:
		add(ev.TargetID, models.NotificationRepost, name+" reposted your post", postRef)
	case FollowCreated:
		add(ev.TargetID, models.NotificationFollow, name+" started following you", nil)
	}
	return intents, suppressed
}
