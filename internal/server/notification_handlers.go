package server

import (
	"zing/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications?page=&limit=
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)
	p := parsePagination(c, 20)

	list, err := s.rt.NotificationService.List(ctx, userID, p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}
	unread, err := s.rt.NotificationService.UnreadCount(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": list,
		"unread_count":  unread,
		"page":          p.Page,
		"has_more":      len(list) == p.Limit,
	})
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.rt.NotificationService.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": n})
}

// MarkNotificationRead handles PUT /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, ok := pathParam(c, "id", "notification ID")
	if !ok {
		return nil
	}

	if err := s.rt.NotificationService.MarkRead(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

// MarkAllNotificationsRead handles PUT /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.rt.NotificationService.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
		"updated": n,
	})
}
