package repository

import (
	"context"
	"errors"

	"zing/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	EnsureUser(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// withCounts selects follower and following counts as read-time projections.
func withCounts(db *gorm.DB) *gorm.DB {
	return db.Select("users.*, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.followee_id = users.id) AS follower_count, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id) AS following_count")
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := withCounts(r.db.WithContext(ctx)).Where("users.id = ?", id).First(&user).Error; err != nil {
		return nil, translateError(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := withCounts(r.db.WithContext(ctx)).Where("users.username = ?", username).First(&user).Error; err != nil {
		return nil, translateError(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	var users []models.User
	if len(usernames) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateError(err, "User", user.Username)
	}
	return nil
}

// EnsureUser returns the user with user.Username, creating it when absent.
func (r *userRepository) EnsureUser(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := r.GetByUsername(ctx, user.Username)
	if err == nil {
		return existing, nil
	}
	if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}
	if err := r.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeDuplicate) {
			return r.GetByUsername(ctx, user.Username)
		}
		return nil, err
	}
	return r.GetByID(ctx, user.ID)
}

func (r *userRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	if name, ok := fields["display_name"].(string); ok {
		fields["display_name_fold"] = models.FoldCase(name)
	}
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, translateError(res.Error, "User", id)
		}
		if res.RowsAffected == 0 {
			return nil, models.NewNotFoundError("User", id)
		}
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	pattern := likePattern(query)
	err := withCounts(r.db.WithContext(ctx)).
		Where(`LOWER(users.username) LIKE ? ESCAPE '\' OR users.display_name_fold LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("users.username ASC").
		Limit(clampLimit(limit, 20, 100)).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := withCounts(r.db.WithContext(ctx)).
		Order("users.created_at ASC, users.id ASC").
		Limit(clampLimit(limit, 20, 1000)).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return users, nil
		}
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
