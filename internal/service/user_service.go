package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"zing/internal/models"
	"zing/internal/observability"
)

// Profile field limits in code points.
const (
	maxDisplayNameLen = 50
	maxBioLen         = 160
	maxLocationLen    = 50
	maxWebsiteLen     = 100
	userSearchLimit   = 20
)

// usernamePattern matches the names an @mention can reach.
var usernamePattern = regexp.MustCompile(`^\w{1,30}$`)

// UpdateProfileInput carries optional profile changes; nil fields are left as is.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	Location    *string
	Website     *string
	Avatar      *string
	Banner      *string
}

// GetUser returns the user with its follower and following counts.
func (s *GraphService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetUserByUsername returns the user with the exact username.
func (s *GraphService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// ListUsers pages through all users in creation order.
func (s *GraphService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// Profile returns the user named username with viewer-relative state.
// viewerID may be empty.
func (s *GraphService) Profile(ctx context.Context, username, viewerID string) (profile *models.Profile, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "Profile")
	defer span.Finish(&err)

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	profile = &models.Profile{User: user}

	if viewerID != "" && viewerID != user.ID {
		profile.IsFollowing, err = s.followRepo.IsFollowing(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
	}
	if s.postRepo != nil {
		profile.PostCount, err = s.postRepo.CountByAuthor(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// UpdateProfile validates and applies in to the user's profile.
func (s *GraphService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (user *models.User, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "UpdateProfile")
	defer span.Finish(&err)

	fields := make(map[string]interface{})
	set := func(column string, v *string, min, max int, label string) error {
		if v == nil {
			return nil
		}
		value := normalize(*v)
		if n := runeLen(value); n < min || (max > 0 && n > max) {
			if min > 0 {
				return models.NewValidationError(fmt.Sprintf("%s must be %d-%d characters", label, min, max))
			}
			return models.NewValidationError(fmt.Sprintf("%s too long (max %d characters)", label, max))
		}
		fields[column] = value
		return nil
	}

	if err := set("display_name", in.DisplayName, 1, maxDisplayNameLen, "Display name"); err != nil {
		return nil, err
	}
	if err := set("bio", in.Bio, 0, maxBioLen, "Bio"); err != nil {
		return nil, err
	}
	if err := set("location", in.Location, 0, maxLocationLen, "Location"); err != nil {
		return nil, err
	}
	if err := set("website", in.Website, 0, maxWebsiteLen, "Website"); err != nil {
		return nil, err
	}
	if err := set("avatar", in.Avatar, 0, 0, "Avatar"); err != nil {
		return nil, err
	}
	if err := set("banner", in.Banner, 0, 0, "Banner"); err != nil {
		return nil, err
	}

	user, err = s.userRepo.Update(ctx, userID, fields)
	observability.RecordMutation("update_profile", err)
	return user, err
}

// SearchUsers matches query against usernames and display names.
func (s *GraphService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.userRepo.Search(ctx, query, userSearchLimit)
}

// EnsureUser returns the user with user.Username, creating it from user when
// absent. Registration happens elsewhere; this keeps rows available for
// seeding and administration.
func (s *GraphService) EnsureUser(ctx context.Context, user *models.User) (*models.User, error) {
	if strings.TrimSpace(user.Username) == "" {
		return nil, models.NewValidationError("Username is required")
	}
	if !usernamePattern.MatchString(user.Username) {
		return nil, models.NewValidationError("Username must be 1-30 letters, digits or underscores")
	}
	return s.userRepo.EnsureUser(ctx, user)
}

// SetVerified sets the verified badge of the user named username.
func (s *GraphService) SetVerified(ctx context.Context, username string, verified bool) (user *models.User, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "SetVerified")
	defer span.Finish(&err)

	user, err = s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.Verified == verified {
		return user, nil
	}
	user, err = s.userRepo.Update(ctx, user.ID, map[string]interface{}{"verified": verified})
	observability.RecordMutation("set_verified", err)
	return user, err
}
