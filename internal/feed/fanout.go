package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/internal/queue"
	"github.com/newsflow/newsflow/pkg/logging"
)

// EventPublisher submits a fan-out event to the broker
type EventPublisher interface {
	Publish(ctx context.Context, event *queue.FanoutEvent) error
}

// Fanout resolves an author's follower set and emits one fan-out event per
// new post. Submission is synchronous; delivery to followers' feed indexes
// happens asynchronously in the worker. Failures here are logged and never
// propagated: the post stays durable either way and followers converge via
// the read-path rebuild.
type Fanout struct {
	follows   *db.FollowRepository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewFanout creates a fan-out publisher service
func NewFanout(follows *db.FollowRepository, publisher EventPublisher) *Fanout {
	return &Fanout{
		follows:   follows,
		publisher: publisher,
		logger:    logging.WithComponent("fanout"),
	}
}

// Publish snapshots the author's current followers and enqueues one event
func (f *Fanout) Publish(ctx context.Context, author *models.User, post *models.Post) {
	followerIDs, err := f.follows.FollowerIDs(ctx, author.ID)
	if err != nil {
		f.logger.Error("failed to resolve followers for fan-out",
			zap.Int64("author_id", author.ID), zap.Int64("post_id", post.ID), zap.Error(err))
		return
	}
	if len(followerIDs) == 0 {
		f.logger.Debug("no followers to fan out to",
			zap.Int64("author_id", author.ID), zap.Int64("post_id", post.ID))
		return
	}

	event := &queue.FanoutEvent{
		AuthorID:    author.ID,
		PostID:      post.ID,
		FollowerIDs: followerIDs,
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Error("failed to enqueue fan-out event",
			zap.Int64("author_id", author.ID), zap.Int64("post_id", post.ID), zap.Error(err))
		return
	}

	f.logger.Info("fan-out event enqueued",
		zap.Int64("author_id", author.ID),
		zap.Int64("post_id", post.ID),
		zap.Int("follower_count", len(followerIDs)))
}
