package server

import (
	"strings"

	"zing/internal/middleware"
	"zing/internal/models"
	"zing/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed page/limit query parameters.
type Pagination struct {
	Page  int
	Limit int
}

const maxPaginationLimit = 100

// parsePagination reads ?page and ?limit. A missing or invalid page is 1
// and pages past service.MaxPage are capped; a missing limit uses
// defaultLimit and larger ones are capped.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	page := service.ClampPage(c.QueryInt("page", 1))

	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	return Pagination{Page: page, Limit: limit}
}

// viewerID is the authenticated caller, or "" for anonymous requests.
func viewerID(c *fiber.Ctx) string {
	return middleware.UserID(c)
}

// pathParam returns a trimmed route parameter and writes a 400 reply when
// it is empty.
func pathParam(c *fiber.Ctx, name, label string) (string, bool) {
	v := strings.TrimSpace(c.Params(name))
	if v == "" {
		_ = RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid "+label))
		return "", false
	}
	return v, true
}

func (s *Server) feedPageSize() int {
	if s.config.FeedPageSize > 0 {
		return s.config.FeedPageSize
	}
	return 20
}
