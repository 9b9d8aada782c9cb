package server

import (
	"zing/internal/middleware"
	"zing/internal/models"
	"zing/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
	ReplyTo string   `json:"reply_to"`
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.rt.PostService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:  middleware.UserID(c),
		Content:   req.Content,
		Images:    req.Images,
		ReplyToID: req.ReplyTo,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully",
		"post":    res.Post,
	})
}

// GetFeed handles GET /api/posts/feed?page=&limit=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	p := parsePagination(c, s.feedPageSize())

	page, err := s.rt.FeedService.Feed(c.UserContext(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetTrending handles GET /api/posts/trending
func (s *Server) GetTrending(c *fiber.Ctx) error {
	posts, err := s.rt.FeedService.Trending(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetPost handles GET /api/posts/:postId
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, ok := pathParam(c, "postId", "post ID")
	if !ok {
		return nil
	}

	detail, err := s.rt.PostService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// LikePost handles POST /api/posts/:postId/like and toggles the like.
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, ok := pathParam(c, "postId", "post ID")
	if !ok {
		return nil
	}

	res, err := s.rt.PostService.ToggleLike(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}

	message := "Post unliked"
	if res.Liked {
		message = "Post liked"
	}
	return c.JSON(fiber.Map{
		"message":    message,
		"is_liked":   res.Liked,
		"like_count": res.LikeCount,
	})
}

// UnlikePost handles DELETE /api/posts/:postId/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, ok := pathParam(c, "postId", "post ID")
	if !ok {
		return nil
	}

	res, err := s.rt.PostService.Unlike(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// RepostPost handles POST /api/posts/:postId/repost
func (s *Server) RepostPost(c *fiber.Ctx) error {
	id, ok := pathParam(c, "postId", "post ID")
	if !ok {
		return nil
	}

	repost, err := s.rt.PostService.Repost(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post reposted successfully",
		"post":    repost,
	})
}

// DeletePost handles DELETE /api/posts/:postId
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, ok := pathParam(c, "postId", "post ID")
	if !ok {
		return nil
	}

	if err := s.rt.PostService.DeletePost(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// SearchPosts handles GET /api/posts/search/:query
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.rt.PostService.Search(c.UserContext(), c.Params("query"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}
