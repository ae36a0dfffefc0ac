package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/feed"
	"github.com/newsflow/newsflow/internal/queue"
	"github.com/newsflow/newsflow/pkg/config"
	"github.com/newsflow/newsflow/pkg/logging"
	"github.com/newsflow/newsflow/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Newsflow Fan-out Worker")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Initialize NATS
	nc, err := queue.Connect(&cfg.Nats, "newsflow-worker")
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Subscribe the fan-out consumer
	feedIndex := cache.NewFeedIndex(redisCache.Client(), &cfg.Feed)
	consumer := feed.NewConsumer(feedIndex)

	sub, err := consumer.Subscribe(nc)
	if err != nil {
		logger.Fatal("Failed to subscribe to fan-out subject", zap.Error(err))
	}

	logger.Info("Worker subscribed, waiting for fan-out events",
		zap.String("subject", queue.FanoutSubject),
		zap.String("queue_group", queue.FanoutQueueGroup))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")

	// Stop taking new events, then let in-flight handlers finish
	if err := sub.Drain(); err != nil {
		logger.Error("Failed to drain subscription", zap.Error(err))
	}

	logger.Info("Worker exited")
}
