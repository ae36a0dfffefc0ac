package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/newsflow/newsflow/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves multiple users by IDs (batched point lookup)
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

func withMedia(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// GetByID retrieves a post by ID, with media preloaded
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Media", withMedia).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves multiple posts by IDs (batched point lookup)
func (r *PostRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Preload("Media", withMedia).
		Where("id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// FindByAuthors retrieves posts authored by any of the given users,
// ordered by ID descending. A non-nil cursor restricts results to
// id < cursor (exclusive upper bound).
func (r *PostRepository) FindByAuthors(ctx context.Context, authorIDs []int64, cursor *int64, limit int) ([]*models.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Preload("Media", withMedia).
		Where("user_id IN ?", authorIDs)
	if cursor != nil {
		query = query.Where("id < ?", *cursor)
	}

	var posts []*models.Post
	if err := query.Order("id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// FollowRepository provides follow-edge database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Get retrieves a follow edge, or nil if the pair is not related
func (r *FollowRepository) Get(ctx context.Context, followerID, followingID int64) (*models.Follow, error) {
	var follow models.Follow
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &follow, nil
}

// Exists reports whether the follow edge exists
func (r *FollowRepository) Exists(ctx context.Context, followerID, followingID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create creates a follow edge
func (r *FollowRepository) Create(ctx context.Context, follow *models.Follow) error {
	return r.db.WithContext(ctx).Create(follow).Error
}

// Delete removes a follow edge
func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID int64) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
}

// FollowerIDs returns the IDs of users following the given user
func (r *FollowRepository) FollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Pluck("follower_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FolloweeIDs returns the IDs of users the given user follows
func (r *FollowRepository) FolloweeIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountFollowers returns how many users follow the given user
func (r *FollowRepository) CountFollowers(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountFollowing returns how many users the given user follows
func (r *FollowRepository) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error
	return count, err
}
