package service

import (
	"context"

	"zing/internal/events"
	"zing/internal/keylock"
	"zing/internal/models"
	"zing/internal/observability"
	"zing/internal/repository"
)

// GraphService provides follow-graph and profile business logic.
type GraphService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	locks      *keylock.Striped
	events     Publisher
}

// NewGraphService returns a new GraphService.
func NewGraphService(userRepo repository.UserRepository, followRepo repository.FollowRepository, postRepo repository.PostRepository, locks *keylock.Striped, events Publisher) *GraphService {
	if locks == nil {
		locks = keylock.New(0)
	}
	return &GraphService{
		userRepo:   userRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
		locks:      locks,
		events:     events,
	}
}

// Follow makes followerID follow targetID and reports the resulting state,
// which is always true on success. Following someone already followed is a
// no-op and sends no notification.
func (s *GraphService) Follow(ctx context.Context, followerID, targetID string) (following bool, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "Follow")
	defer span.Finish(&err)

	if followerID == targetID {
		return false, models.NewSelfFollowError()
	}
	unlock := s.locks.Lock(keylock.UserKey(followerID), keylock.UserKey(targetID))
	defer unlock()

	actor, err := s.resolvePair(ctx, followerID, targetID)
	if err != nil {
		return false, err
	}
	if err := s.follow(ctx, actor, targetID); err != nil {
		return false, err
	}
	return true, nil
}

// Unfollow removes the edge if present. The result is always false on success.
func (s *GraphService) Unfollow(ctx context.Context, followerID, targetID string) (following bool, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "Unfollow")
	defer span.Finish(&err)

	if followerID == targetID {
		return false, models.NewSelfFollowError()
	}
	unlock := s.locks.Lock(keylock.UserKey(followerID), keylock.UserKey(targetID))
	defer unlock()

	if _, err := s.resolvePair(ctx, followerID, targetID); err != nil {
		return false, err
	}
	_, err = s.followRepo.Unfollow(ctx, followerID, targetID)
	observability.RecordMutation("unfollow", err)
	return false, err
}

// ToggleFollow follows targetID if not already following, otherwise
// unfollows. It returns the new state.
func (s *GraphService) ToggleFollow(ctx context.Context, followerID, targetID string) (following bool, err error) {
	span, ctx := observability.StartServiceSpan(ctx, "GraphService", "ToggleFollow")
	defer span.Finish(&err)

	if followerID == targetID {
		return false, models.NewSelfFollowError()
	}
	unlock := s.locks.Lock(keylock.UserKey(followerID), keylock.UserKey(targetID))
	defer unlock()

	actor, err := s.resolvePair(ctx, followerID, targetID)
	if err != nil {
		return false, err
	}
	isFollowing, err := s.followRepo.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return false, err
	}
	if isFollowing {
		_, err = s.followRepo.Unfollow(ctx, followerID, targetID)
		observability.RecordMutation("unfollow", err)
		return false, err
	}
	if err := s.follow(ctx, actor, targetID); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleFollowByUsername resolves username and toggles the follow edge.
func (s *GraphService) ToggleFollowByUsername(ctx context.Context, followerID, username string) (bool, error) {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return s.ToggleFollow(ctx, followerID, target.ID)
}

// follow writes the edge and publishes FollowCreated only when the edge is new.
// Callers hold both user locks.
func (s *GraphService) follow(ctx context.Context, actor *models.User, targetID string) error {
	created, err := s.followRepo.Follow(ctx, actor.ID, targetID)
	observability.RecordMutation("follow", err)
	if err != nil {
		return err
	}
	if created {
		publish(ctx, s.events, events.Event{Kind: events.FollowCreated, Actor: actor, TargetID: targetID})
	}
	return nil
}

// resolvePair loads the follower and checks that the target exists.
func (s *GraphService) resolvePair(ctx context.Context, followerID, targetID string) (*models.User, error) {
	actor, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *GraphService) requireUser(ctx context.Context, id string) error {
	ok, err := s.userRepo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// IsFollowing reports whether followerID follows targetID.
func (s *GraphService) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, targetID)
}

// Followers returns the users following userID.
func (s *GraphService) Followers(ctx context.Context, userID string) ([]models.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, userID)
}

// Following returns the users userID follows.
func (s *GraphService) Following(ctx context.Context, userID string) ([]models.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, userID)
}
