package service

import (
	"context"

	"zing/internal/cache"
	"zing/internal/models"
	"zing/internal/observability"
	"zing/internal/repository"
)

// NotificationService stores and reads notifications. It is the store the
// fan-out dispatcher writes to.
type NotificationService struct {
	repo  repository.NotificationRepository
	cache *cache.Cache
}

// NewNotificationService returns a new NotificationService. c may be nil.
func NewNotificationService(repo repository.NotificationRepository, c *cache.Cache) *NotificationService {
	return &NotificationService{repo: repo, cache: c}
}

// Create stores n. A notification addressed to its own sender is dropped
// and Create returns nil, nil.
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if !n.Type.Valid() {
		return nil, models.NewValidationError("Unknown notification type: " + string(n.Type))
	}
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.cache.InvalidateUnread(ctx, created.RecipientID)
	}
	return created, nil
}

// List returns a page of recipientID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string, page, pageSize int) ([]*models.Notification, error) {
	limit, offset := pageWindow(page, pageSize, DefaultPageSize)
	return s.repo.List(ctx, recipientID, limit, offset)
}

// MarkRead marks one of recipientID's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) (err error) {
	span, ctx := observability.StartServiceSpan(ctx, "NotificationService", "MarkRead")
	defer span.Finish(&err)

	err = s.repo.MarkRead(ctx, recipientID, id)
	observability.RecordMutation("mark_read", err)
	if err != nil {
		return err
	}
	s.cache.InvalidateUnread(ctx, recipientID)
	return nil
}

// MarkAllRead marks every unread notification of recipientID as read and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (n int64, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "NotificationService", "MarkAllRead")
	defer span.Finish(&err)

	n, err = s.repo.MarkAllRead(ctx, recipientID)
	observability.RecordMutation("mark_all_read", err)
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateUnread(ctx, recipientID)
	return n, nil
}

// UnreadCount returns recipientID's unread count, served from cache when
// available.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	key := cache.UnreadKey(recipientID)
	if n, ok := s.cache.GetCount(ctx, key); ok {
		return n, nil
	}
	gen := s.cache.Generation(ctx, key)
	n, err := s.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	s.cache.SetCountAt(ctx, key, gen, n, cache.UnreadTTL)
	return n, nil
}
