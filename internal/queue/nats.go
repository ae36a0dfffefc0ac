package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/pkg/config"
	"github.com/newsflow/newsflow/pkg/logging"
)

const (
	// FanoutSubject is the subject carrying fan-out events.
	FanoutSubject = "feed.fanout"
	// FanoutQueueGroup lets multiple worker processes share the subject.
	FanoutQueueGroup = "feed-workers"
)

// FanoutEvent is the wire shape of a fan-out message. The follower list is
// a snapshot taken at publish time; followers added afterwards only see the
// post via rebuild-on-miss.
type FanoutEvent struct {
	AuthorID    int64   `json:"authorId"`
	PostID      int64   `json:"postId"`
	FollowerIDs []int64 `json:"followerIds"`
}

// Connect establishes a NATS connection
func Connect(cfg *config.NatsConfig, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.GetLogger().Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.GetLogger().Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logging.GetLogger().Info("NATS connection established", zap.String("url", cfg.URL))
	return nc, nil
}
