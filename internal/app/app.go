/*
Package app assembles the analyzer and its collaborators from the
configuration. The server, the worker and the CLI share it.
*/
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/ripple/internal/config"
	"github.com/OFFIS-RIT/ripple/internal/storage"
	"github.com/OFFIS-RIT/ripple/pkg/ai"
	gemini "github.com/OFFIS-RIT/ripple/pkg/ai/gemini"
	oai "github.com/OFFIS-RIT/ripple/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/ripple/pkg/ai/openai"
	"github.com/OFFIS-RIT/ripple/pkg/analyzer"
	"github.com/OFFIS-RIT/ripple/pkg/cache"
	"github.com/OFFIS-RIT/ripple/pkg/chain"
	"github.com/OFFIS-RIT/ripple/pkg/classifier"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/discovery"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
	"github.com/OFFIS-RIT/ripple/pkg/ripple"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Runtime holds everything opened for one process. Optional parts are nil
// when not configured.
type Runtime struct {
	Config   config.Config
	Client   ai.Client
	Pool     *pgxpool.Pool
	Bucket   *storage.Bucket
	Cache    cache.RelationshipCache
	Store    *store.ArticleStore
	Analyzer *analyzer.Analyzer
}

// NewAIClient creates the model client for cfg, or nil for the "none"
// adapter.
func NewAIClient(ctx context.Context, cfg config.AIConfig) (ai.Client, error) {
	switch cfg.Adapter {
	case "none":
		return nil, nil
	case "ollama":
		client, err := oai.NewOllamaClient(oai.NewOllamaClientParams{
			ChatModel:             cfg.ChatModel,
			EmbeddingModel:        cfg.EmbeddingModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			Temperature:           cfg.Temperature,
			Timeout:               cfg.Timeout,
			MaxConcurrentRequests: cfg.Parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: could not create Ollama client: %v", common.ErrConfiguration, err)
		}
		return client, nil
	case "gemini":
		client, err := gemini.NewGeminiClient(ctx, gemini.NewGeminiClientParams{
			ApiKey:           cfg.ChatKey,
			ChatModel:        cfg.ChatModel,
			EmbeddingModel:   cfg.EmbeddingModel,
			Temperature:      cfg.Temperature,
			Timeout:          cfg.Timeout,
			ParallelRequests: cfg.Parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
		}
		return client, nil
	default:
		embeddingKey := cfg.EmbeddingKey
		if embeddingKey == "" {
			embeddingKey = cfg.ChatKey
		}
		return gai.NewOpenAIClient(gai.NewOpenAIClientParams{
			ChatModel:        cfg.ChatModel,
			EmbeddingModel:   cfg.EmbeddingModel,
			ChatURL:          cfg.ChatURL,
			ChatKey:          cfg.ChatKey,
			EmbeddingURL:     cfg.EmbeddingURL,
			EmbeddingKey:     embeddingKey,
			Temperature:      cfg.Temperature,
			Timeout:          cfg.Timeout,
			ParallelRequests: cfg.Parallel,
		}), nil
	}
}

func NewCache(cfg config.CacheConfig) (cache.RelationshipCache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "badger":
		return cache.NewBadger(cfg.Dir, cfg.TTL)
	default:
		return cache.NewMemory(cfg.TTL), nil
	}
}

// unavailable is the classifier used without a model backend.
var unavailable = classifier.Func(func(ctx context.Context, source common.Article, candidates []common.Article) ([]classifier.Edge, error) {
	return nil, fmt.Errorf("%w: no model adapter configured", common.ErrClassifierUnavailable)
})

// Open connects the configured backends, loads the corpus, attaches
// embeddings and wires the analyzer. The graph is not built yet.
func Open(ctx context.Context, cfg config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	client, err := NewAIClient(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	rt.Client = client

	if cfg.Database.URL != "" {
		if err := store.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, err
		}
		if rt.Pool, err = store.NewPool(ctx, cfg.Database.URL); err != nil {
			return nil, err
		}
	}
	if cfg.S3.Bucket != "" {
		if rt.Bucket, err = storage.NewBucket(ctx, cfg.S3); err != nil {
			return nil, err
		}
	}
	c, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	rt.Cache = c

	if rt.Store, err = store.Load(ctx, rt.source()); err != nil {
		return nil, err
	}
	logger.Info("Loaded corpus", "source", cfg.Corpus.Source, "articles", rt.Store.Len())

	var embedder ai.Embedder
	if client != nil && cfg.AI.EmbeddingModel != "" {
		embedder = client
	}
	if err := store.AttachEmbeddings(ctx, rt.Store, embedder); err != nil {
		logger.Warn("Failed to attach embeddings, similarity disabled for missing vectors", "err", err)
	}

	var cls classifier.Classifier = unavailable
	params := analyzer.Params{
		Store:            rt.Store,
		ParallelArticles: cfg.Discovery.ParallelArticles,
		Chain:            chain.Config{MaxDepth: cfg.Discovery.MaxChainDepth},
		Embedder:         embedder,
	}
	if client != nil {
		cls = classifier.NewLLMClassifier(client, cfg.Discovery.ConfidenceThreshold, classifier.WithRetries(cfg.AI.Retries))
		forecaster := ripple.NewLLMForecaster(client, cfg.AI.Retries)
		params.Forecaster = forecaster
		params.Timeline = forecaster
		params.Indicators = forecaster
	}
	if rt.Pool != nil {
		params.Sink = store.NewPostgresSource(rt.Pool)
	}
	params.Engine = discovery.NewEngine(rt.Store, cls, rt.Cache, cfg.DiscoveryConfig())

	if rt.Analyzer, err = analyzer.New(params); err != nil {
		return nil, err
	}
	ok = true
	return rt, nil
}

func (rt *Runtime) source() store.Source {
	switch rt.Config.Corpus.Source {
	case "s3":
		return store.S3Source{Bucket: rt.Bucket, Prefix: rt.Config.Corpus.Prefix}
	case "postgres":
		return store.NewPostgresSource(rt.Pool)
	default:
		return store.FileSource{Path: rt.Config.Corpus.Path}
	}
}

func (rt *Runtime) Close() error {
	var errs []error
	if rt.Cache != nil {
		errs = append(errs, rt.Cache.Close())
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
	return errors.Join(errs...)
}
