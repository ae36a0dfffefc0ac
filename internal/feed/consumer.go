package feed

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/queue"
	"github.com/newsflow/newsflow/pkg/logging"
	"github.com/newsflow/newsflow/pkg/telemetry"
)

// Consumer applies fan-out events to followers' feed index entries.
// Processing is idempotent per post ID (sorted-set semantics), so
// duplicate delivery is a safe no-op. A follower whose update is lost
// recovers through the read-path rebuild.
type Consumer struct {
	index  *cache.FeedIndex
	logger *zap.Logger
}

// NewConsumer creates a fan-out consumer
func NewConsumer(index *cache.FeedIndex) *Consumer {
	return &Consumer{
		index:  index,
		logger: logging.WithComponent("fanout-consumer"),
	}
}

// Subscribe attaches the consumer to the fan-out subject in a shared queue
// group so concurrent workers split the stream.
func (c *Consumer) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.QueueSubscribe(queue.FanoutSubject, queue.FanoutQueueGroup, c.Handle)
}

// Handle processes a single fan-out event. Every embedded follower is
// attempted; per-follower cache failures are masked inside AddPost so one
// failure never aborts the rest.
func (c *Consumer) Handle(msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	ctx, span := telemetry.StartSpan(ctx, "process_fanout_event", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event queue.FanoutEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		c.logger.Error("dropping malformed fan-out event", zap.Error(err))
		return
	}

	for _, followerID := range event.FollowerIDs {
		c.index.AddPost(ctx, followerID, event.PostID)
	}

	c.logger.Info("fan-out event processed",
		zap.Int64("author_id", event.AuthorID),
		zap.Int64("post_id", event.PostID),
		zap.Int("follower_count", len(event.FollowerIDs)))
}
