package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/pkg/logging"
)

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
}

// Publisher emits fan-out events to the fan-out subject
type Publisher struct {
	nc     Conn
	logger *zap.Logger
}

// NewPublisher creates a fan-out event publisher
func NewPublisher(nc Conn) *Publisher {
	return &Publisher{
		nc:     nc,
		logger: logging.WithComponent("fanout-publisher"),
	}
}

// Publish submits the event and blocks until the broker has accepted it.
// Trace context is carried in the message headers.
func (p *Publisher) Publish(ctx context.Context, event *FanoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal fan-out event: %w", err)
	}

	msg := &nats.Msg{
		Subject: FanoutSubject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish fan-out event: %w", err)
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		return fmt.Errorf("failed to flush fan-out event: %w", err)
	}

	p.logger.Debug("fan-out event published",
		zap.Int64("author_id", event.AuthorID),
		zap.Int64("post_id", event.PostID),
		zap.Int("follower_count", len(event.FollowerIDs)))
	return nil
}
