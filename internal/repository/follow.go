package repository

import (
	"context"

	"zing/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores the directed follow graph. Both projections
// (following and followers) read the same follows rows.
type FollowRepository interface {
	// Follow inserts the edge and reports whether it was newly created.
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	// Unfollow deletes the edge and reports whether one existed.
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]models.User, error)
	Following(ctx context.Context, userID string) ([]models.User, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "followee_id"}},
			DoNothing: true,
		}).
		Create(&edge)
	if res.Error != nil {
		return false, translateError(res.Error, "Follow", followeeID)
	}
	return res.RowsAffected == 1, nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Followers(ctx context.Context, userID string) ([]models.User, error) {
	return r.linked(ctx, "follows.follower_id", "follows.followee_id = ?", userID)
}

func (r *followRepository) Following(ctx context.Context, userID string) ([]models.User, error) {
	return r.linked(ctx, "follows.followee_id", "follows.follower_id = ?", userID)
}

// linked lists the users on the other end of userID's edges, oldest edge first.
func (r *followRepository) linked(ctx context.Context, joinCol, where, userID string) ([]models.User, error) {
	var users []models.User
	err := withCounts(r.db.WithContext(ctx)).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(where, userID).
		Order("follows.created_at ASC, follows.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
