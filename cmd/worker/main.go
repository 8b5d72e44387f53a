package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/app"
	"github.com/OFFIS-RIT/ripple/internal/config"
	"github.com/OFFIS-RIT/ripple/internal/queue"
	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/leaselock"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
	"github.com/OFFIS-RIT/ripple/pkg/logger/console"
	"github.com/OFFIS-RIT/ripple/pkg/store"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug, JSON: cfg.LogJSON, Prefix: "worker"}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := app.NewAIClient(ctx, cfg.AI)
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	processor := queue.IngestProcessor{}
	if aiClient != nil && cfg.AI.EmbeddingModel != "" {
		processor.Embedder = aiClient
	}

	if cfg.Database.URL != "" {
		if err := store.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
		pool, err := store.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		defer pool.Close()
		processor.Saver = store.NewPostgresSource(pool)
		processor.Locker = leaselock.New(pool, leaselock.Options{Wait: true, WaitJitter: 250 * time.Millisecond, Owner: "worker-"})
	}

	url := cfg.Queue.URL()
	if url == "" {
		logger.Fatal("RABBITMQ_HOST is required for the worker")
	}
	conn, err := queue.Dial(url)
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	processor.Publisher = ch

	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	handle := func(ctx context.Context, body []byte) error {
		err := processor.Process(ctx, body)
		if aiClient != nil {
			logMetrics(aiClient.GetMetrics())
			aiClient.ResetMetrics()
		}
		return err
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)
	if err := queue.Consume(ctx, ch, queue.IngestQueue, handle); err != nil {
		logger.Fatal("Consumer failed", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

func logMetrics(m ai.ModelMetrics) {
	d := time.Duration(m.DurationMs) * time.Millisecond
	logger.Info(
		"AI Metrics",
		"requests", m.Requests,
		"input_tokens", m.InputTokens,
		"output_tokens", m.OutputTokens,
		"total_tokens", m.TotalTokens,
		"duration", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60),
	)
}
