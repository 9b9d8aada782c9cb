package server

import (
	"context"

	"zing/internal/middleware"
	"zing/internal/models"
	"zing/internal/service"

	"github.com/gofiber/fiber/v2"
)

type profileResponse struct {
	*models.Profile
	Posts []*models.Post `json:"posts"`
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
	Avatar      *string `json:"avatar"`
	Banner      *string `json:"banner"`
}

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.rt.GraphService.GetUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetProfile handles GET /api/users/:username with the user's latest posts.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	username, ok := pathParam(c, "username", "username")
	if !ok {
		return nil
	}
	ctx := c.UserContext()
	viewer := viewerID(c)

	profile, err := s.rt.GraphService.Profile(ctx, username, viewer)
	if err != nil {
		return respondError(c, err)
	}
	posts, err := s.rt.PostService.UserPosts(ctx, username, viewer, 1, 0)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profileResponse{Profile: profile, Posts: posts})
}

// GetUserPosts handles GET /api/users/:username/posts?page=&limit=
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	username, ok := pathParam(c, "username", "username")
	if !ok {
		return nil
	}
	p := parsePagination(c, 20)

	posts, err := s.rt.PostService.UserPosts(c.UserContext(), username, viewerID(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts, "page": p.Page})
}

// UpdateProfile handles PUT /api/users/profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.rt.GraphService.UpdateProfile(c.UserContext(), middleware.UserID(c), service.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Location:    req.Location,
		Website:     req.Website,
		Avatar:      req.Avatar,
		Banner:      req.Banner,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ToggleFollow handles POST /api/users/:username/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	username, ok := pathParam(c, "username", "username")
	if !ok {
		return nil
	}

	following, err := s.rt.GraphService.ToggleFollowByUsername(c.UserContext(), middleware.UserID(c), username)
	if err != nil {
		return respondError(c, err)
	}
	return s.followReply(c, username, following)
}

// Follow handles PUT /api/users/:username/follow
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.setFollow(c, true)
}

// Unfollow handles DELETE /api/users/:username/follow
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.setFollow(c, false)
}

func (s *Server) setFollow(c *fiber.Ctx, follow bool) error {
	username, ok := pathParam(c, "username", "username")
	if !ok {
		return nil
	}
	ctx := c.UserContext()

	target, err := s.rt.GraphService.GetUserByUsername(ctx, username)
	if err != nil {
		return respondError(c, err)
	}

	var following bool
	if follow {
		following, err = s.rt.GraphService.Follow(ctx, middleware.UserID(c), target.ID)
	} else {
		following, err = s.rt.GraphService.Unfollow(ctx, middleware.UserID(c), target.ID)
	}
	if err != nil {
		return respondError(c, err)
	}
	return s.followReply(c, username, following)
}

func (s *Server) followReply(c *fiber.Ctx, username string, following bool) error {
	message := "Unfollowed " + username
	if following {
		message = "Following " + username
	}
	return c.JSON(fiber.Map{
		"message":      message,
		"is_following": following,
	})
}

// GetFollowers handles GET /api/users/:username/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.listGraph(c, "followers", s.rt.GraphService.Followers)
}

// GetFollowing handles GET /api/users/:username/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	return s.listGraph(c, "following", s.rt.GraphService.Following)
}

type graphLister func(ctx context.Context, userID string) ([]models.User, error)

func (s *Server) listGraph(c *fiber.Ctx, key string, list graphLister) error {
	username, ok := pathParam(c, "username", "username")
	if !ok {
		return nil
	}
	ctx := c.UserContext()

	user, err := s.rt.GraphService.GetUserByUsername(ctx, username)
	if err != nil {
		return respondError(c, err)
	}
	users, err := list(ctx, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{key: users})
}

// SearchUsers handles GET /api/users/search/:query
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.rt.GraphService.SearchUsers(c.UserContext(), c.Params("query"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}
