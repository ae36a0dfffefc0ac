package feed

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/pkg/config"
	"github.com/newsflow/newsflow/pkg/logging"
)

var (
	// ErrUserNotFound is returned when the requesting or posting user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrContentInvalid is returned when post content is empty or too long
	ErrContentInvalid = errors.New("post content is invalid")
)

// Service is the feed read orchestrator and write-path entry point.
//
// Reads run miss-check → cache fetch → rebuild → hydrate. Cache faults are
// always masked (treated as miss/empty); durable-store faults surface to
// the caller. Writes persist the post, then hand off to the asynchronous
// fan-out, whose failures are logged only.
type Service struct {
	users     *db.UserRepository
	posts     *db.PostRepository
	follows   *db.FollowRepository
	index     *cache.FeedIndex
	postCache *cache.PostCache
	userCache *cache.UserCache
	fanout    *Fanout

	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// NewService creates the feed service
func NewService(
	users *db.UserRepository,
	posts *db.PostRepository,
	follows *db.FollowRepository,
	index *cache.FeedIndex,
	postCache *cache.PostCache,
	userCache *cache.UserCache,
	fanout *Fanout,
	cfg *config.FeedConfig,
) *Service {
	return &Service{
		users:        users,
		posts:        posts,
		follows:      follows,
		index:        index,
		postCache:    postCache,
		userCache:    userCache,
		fanout:       fanout,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       logging.WithComponent("feed-service"),
	}
}

// CreatePost persists a new post and enqueues the fan-out to followers.
// The call returns once the post is durable; fan-out completion is
// asynchronous and never fails the request.
func (s *Service) CreatePost(ctx context.Context, userID int64, content string, mediaURLs []string) (*PostView, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > models.MaxContentLength {
		return nil, ErrContentInvalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	post := &models.Post{
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Media:     make([]models.PostMedia, len(mediaURLs)),
	}
	for i, url := range mediaURLs {
		post.Media[i] = models.PostMedia{Position: i, URL: url}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		zap.Int64("post_id", post.ID), zap.Int64("user_id", userID))

	s.fanout.Publish(ctx, user, post)

	return newPostView(post, user), nil
}

// GetFeed returns one page of the user's feed, rebuilding the feed index
// from the durable store on a detected cache miss. The cursor, when given,
// is the last seen post ID and bounds the page exclusively from above.
func (s *Service) GetFeed(ctx context.Context, userID int64, cursor *int64, limit int) (*FeedResponse, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	postIDs, err := s.feedPostIDs(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}

	posts, err := s.hydratePosts(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	authors, err := s.hydrateAuthors(ctx, posts)
	if err != nil {
		return nil, err
	}

	views := make([]*PostView, len(posts))
	for i, post := range posts {
		views[i] = newPostView(post, authors[post.UserID])
	}

	resp := &FeedResponse{
		Posts:   views,
		HasMore: len(posts) == limit,
	}
	if resp.HasMore {
		last := posts[len(posts)-1].ID
		resp.NextCursor = &last
	}
	return resp, nil
}

// feedPostIDs resolves the page's post IDs from the feed index, falling
// back to a store rebuild when the entry is missing or too small.
func (s *Service) feedPostIDs(ctx context.Context, userID int64, cursor *int64, limit int) ([]int64, error) {
	if s.index.IsMiss(ctx, userID, limit) {
		s.logger.Debug("feed index miss", zap.Int64("user_id", userID), zap.Int("limit", limit))
		return s.rebuild(ctx, userID, cursor, limit)
	}

	ids := s.index.GetFeed(ctx, userID, cursor, limit)
	if len(ids) == 0 {
		s.logger.Debug("feed index empty, rebuilding", zap.Int64("user_id", userID))
		return s.rebuild(ctx, userID, cursor, limit)
	}
	return ids, nil
}

// rebuild reconstructs the user's feed index from the durable store and
// returns the page's post IDs. Store errors surface to the caller.
func (s *Service) rebuild(ctx context.Context, userID int64, cursor *int64, limit int) ([]int64, error) {
	followees, err := s.follows.FolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(followees) == 0 {
		return nil, nil
	}

	posts, err := s.posts.FindByAuthors(ctx, followees, cursor, limit)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
		s.index.AddPost(ctx, userID, post.ID)
	}

	s.logger.Info("feed index rebuilt",
		zap.Int64("user_id", userID), zap.Int("post_count", len(posts)))
	return ids, nil
}

// hydratePosts performs the batched cache-aside fetch of post content:
// cache hits are collected directly, misses go to the store in one batched
// lookup and are written back. The result preserves the input ID order;
// IDs that resolve nowhere (e.g. deleted posts) are skipped.
func (s *Service) hydratePosts(ctx context.Context, postIDs []int64) ([]*models.Post, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	byID := make(map[int64]*models.Post, len(postIDs))
	var missed []int64
	for _, id := range postIDs {
		if post, ok := s.postCache.Get(ctx, id); ok {
			byID[id] = post
		} else {
			missed = append(missed, id)
		}
	}

	if len(missed) > 0 {
		fetched, err := s.posts.GetByIDs(ctx, missed)
		if err != nil {
			return nil, err
		}
		for _, post := range fetched {
			s.postCache.Put(ctx, post)
			byID[post.ID] = post
		}
		s.logger.Debug("post cache misses hydrated from store",
			zap.Int("requested", len(postIDs)), zap.Int("missed", len(missed)))
	}

	posts := make([]*models.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if post, ok := byID[id]; ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// hydrateAuthors resolves the distinct author identities of a page through
// the identity cache, batching store lookups for the misses.
func (s *Service) hydrateAuthors(ctx context.Context, posts []*models.Post) (map[int64]*models.User, error) {
	authors := make(map[int64]*models.User)
	var missed []int64
	for _, post := range posts {
		if _, seen := authors[post.UserID]; seen {
			continue
		}
		if user, ok := s.userCache.Get(ctx, post.UserID); ok {
			authors[post.UserID] = user
		} else {
			authors[post.UserID] = nil
			missed = append(missed, post.UserID)
		}
	}

	if len(missed) > 0 {
		fetched, err := s.users.GetByIDs(ctx, missed)
		if err != nil {
			return nil, err
		}
		for _, user := range fetched {
			s.userCache.Put(ctx, user)
			authors[user.ID] = user
		}
	}
	return authors, nil
}
