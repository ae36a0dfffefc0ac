package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/pkg/logging"
)

var (
	// ErrUserNotFound is returned when a referenced user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrSelfFollow is returned when a user tries to follow themselves
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrAlreadyFollowing is returned on a duplicate follow
	ErrAlreadyFollowing = errors.New("already following")
	// ErrNotFollowing is returned when unfollowing a non-existent edge
	ErrNotFollowing = errors.New("not following")
	// ErrInvalidUser is returned when user fields fail validation
	ErrInvalidUser = errors.New("invalid user")
)

// Profile is a user together with their follow counts
type Profile struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"createdAt"`
	FollowingCount int64     `json:"followingCount"`
	FollowersCount int64     `json:"followersCount"`
}

// Service owns users and the follow graph. Mutating the graph invalidates
// only the acting follower's feed index entry; nobody else's cache is
// touched.
type Service struct {
	users   *db.UserRepository
	follows *db.FollowRepository
	index   *cache.FeedIndex
	logger  *zap.Logger
}

// NewService creates the user service
func NewService(users *db.UserRepository, follows *db.FollowRepository, index *cache.FeedIndex) *Service {
	return &Service{
		users:   users,
		follows: follows,
		index:   index,
		logger:  logging.WithComponent("user-service"),
	}
}

// CreateUser registers a new user
func (s *Service) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 50 {
		return nil, ErrInvalidUser
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// GetProfile returns a user with their follow counts
func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	following, err := s.follows.CountFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, err := s.follows.CountFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		CreatedAt:      user.CreatedAt,
		FollowingCount: following,
		FollowersCount: followers,
	}, nil
}

// Follow creates a follow edge from follower to target and invalidates the
// follower's cached feed
func (s *Service) Follow(ctx context.Context, followerID, targetID int64) error {
	if followerID == targetID {
		return ErrSelfFollow
	}
	if err := s.requireUsers(ctx, followerID, targetID); err != nil {
		return err
	}

	exists, err := s.follows.Exists(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyFollowing
	}

	follow := &models.Follow{
		FollowerID:  followerID,
		FollowingID: targetID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.follows.Create(ctx, follow); err != nil {
		return err
	}

	// The follow graph changed for this follower only.
	s.index.Invalidate(ctx, followerID)

	s.logger.Info("follow created",
		zap.Int64("follower_id", followerID), zap.Int64("following_id", targetID))
	return nil
}

// Unfollow removes the follow edge and invalidates the follower's cached feed
func (s *Service) Unfollow(ctx context.Context, followerID, targetID int64) error {
	if err := s.requireUsers(ctx, followerID, targetID); err != nil {
		return err
	}

	edge, err := s.follows.Get(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if edge == nil {
		return ErrNotFollowing
	}

	if err := s.follows.Delete(ctx, followerID, targetID); err != nil {
		return err
	}

	s.index.Invalidate(ctx, followerID)

	s.logger.Info("follow removed",
		zap.Int64("follower_id", followerID), zap.Int64("following_id", targetID))
	return nil
}

// IsFollowing reports whether follower follows target
func (s *Service) IsFollowing(ctx context.Context, followerID, targetID int64) (bool, error) {
	if err := s.requireUsers(ctx, followerID, targetID); err != nil {
		return false, err
	}
	return s.follows.Exists(ctx, followerID, targetID)
}

// Following lists the users the given user follows
func (s *Service) Following(ctx context.Context, userID int64) ([]*models.User, error) {
	if err := s.requireUsers(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, ids)
}

// Followers lists the users following the given user
func (s *Service) Followers(ctx context.Context, userID int64) ([]*models.User, error) {
	if err := s.requireUsers(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, ids)
}

func (s *Service) requireUsers(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
	}
	return nil
}
