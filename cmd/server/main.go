package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/ripple/internal/app"
	"github.com/OFFIS-RIT/ripple/internal/config"
	"github.com/OFFIS-RIT/ripple/internal/queue"
	"github.com/OFFIS-RIT/ripple/internal/server"
	mid "github.com/OFFIS-RIT/ripple/internal/server/middleware"
	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
	"github.com/OFFIS-RIT/ripple/pkg/logger/console"

	"github.com/MicahParks/keyfunc/v3"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug, JSON: cfg.LogJSON}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to start", "err", err)
	}
	defer rt.Close()

	// Without a built graph, queries discover the articles they reach.
	if err := rt.Analyzer.Build(ctx); err != nil {
		logger.Error("Graph build failed, discovering reachable articles per query", "err", err)
	}

	a := &mid.App{Analyzer: rt.Analyzer, MasterAPIKey: cfg.Auth.MasterAPIKey}
	if cfg.Auth.URL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.Auth.URL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		a.Key = k.Keyfunc
	}

	if url := cfg.Queue.URL(); url != "" {
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
		go func() {
			if err := queue.Subscribe(ctx, ch, queue.TopicIngested, server.IngestedHandler(rt.Analyzer)); err != nil {
				logger.Error("Subscription ended", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, server.New(a), cfg.Port); err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}
