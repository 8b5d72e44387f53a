/*
Package discovery finds the causal relationships of a single article.

For a source article the engine selects plausible candidates, classifies
them in batches through the causal classifier, validates and filters the
returned edges and ranks them by confidence. Results are memoized in a
relationship cache.

Classifier failures never surface: a failed batch contributes no edges.
Only an unknown source article is reported as an error.
*/
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/cache"
	"github.com/OFFIS-RIT/ripple/pkg/classifier"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var log = logger.Component("Discovery")

// Articles is the read side of the article store.
type Articles interface {
	Get(id common.ArticleID) (common.Article, error)
	All() []common.Article
}

// Config tunes the discovery engine.
type Config struct {
	ConfidenceThreshold float64
	BatchSize           int
	MaxRelationships    int
	ParallelBatches     int
	BatchTimeout        time.Duration
	// RateLimit caps classifier calls per second across all discoveries.
	// Zero disables limiting.
	RateLimit float64
	Selector  SelectorConfig
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.6,
		BatchSize:           5,
		MaxRelationships:    20,
		ParallelBatches:     4,
		BatchTimeout:        60 * time.Second,
		RateLimit:           2,
		Selector:            DefaultSelectorConfig(),
	}
}

type Engine struct {
	articles   Articles
	classifier classifier.Classifier
	cache      cache.RelationshipCache
	selector   Selector
	cfg        Config
	limiter    *rate.Limiter
	tracer     Tracer
	now        func() time.Time
}

type Option func(*Engine)

func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithClock replaces time.Now for discovery timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine wires the engine. A nil cache disables memoization.
func NewEngine(
	articles Articles,
	cls classifier.Classifier,
	c cache.RelationshipCache,
	cfg Config,
	opts ...Option,
) *Engine {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRelationships <= 0 {
		cfg.MaxRelationships = def.MaxRelationships
	}
	if cfg.ParallelBatches <= 0 {
		cfg.ParallelBatches = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}

	e := &Engine{
		articles:   articles,
		classifier: cls,
		cache:      c,
		selector:   NewSelector(cfg.Selector),
		cfg:        cfg,
		now:        time.Now,
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Discover returns the relationships of sourceID, at most maxRelationships
// of them (the configured default when <= 0), by descending confidence.
// Every returned relationship meets the confidence threshold.
func (e *Engine) Discover(ctx context.Context, sourceID common.ArticleID, maxRelationships int) ([]common.Relationship, error) {
	source, err := e.articles.Get(sourceID)
	if err != nil {
		return nil, err
	}
	if maxRelationships <= 0 {
		maxRelationships = e.cfg.MaxRelationships
	}

	key := cache.Key{SourceID: sourceID, Max: maxRelationships}
	if e.cache != nil {
		rels, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			log.Warn("Cache read failed", "key", key.String(), "err", err)
		}
		if ok {
			record(e.tracer, TraceEvent{Kind: TraceEventCacheHit, SourceID: string(sourceID)})
			return rels, nil
		}
	}
	record(e.tracer, TraceEvent{Kind: TraceEventCacheMiss, SourceID: string(sourceID)})

	candidates := e.selector.Select(source, e.articles.All())
	record(e.tracer, TraceEvent{Kind: TraceEventCandidates, SourceID: string(sourceID), Count: len(candidates)})

	rels, err := e.classifyCandidates(ctx, source, candidates, maxRelationships)
	if err != nil {
		return nil, err
	}

	sortRelationships(rels)
	if len(rels) > maxRelationships {
		rels = rels[:maxRelationships]
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, rels); err != nil {
			log.Warn("Cache write failed", "key", key.String(), "err", err)
		}
	}
	record(e.tracer, TraceEvent{Kind: TraceEventRelationshipsOK, SourceID: string(sourceID), Count: len(rels)})
	log.Debug("Discovered relationships", "source", sourceID, "candidates", len(candidates), "relationships", len(rels))

	return rels, nil
}

// classifyCandidates runs the batches on a bounded pool. Once enough
// relationships are collected the remaining batches are cancelled. Only
// cancellation of ctx itself is reported as an error.
func (e *Engine) classifyCandidates(
	ctx context.Context,
	source common.Article,
	candidates []Candidate,
	maxRelationships int,
) ([]common.Relationship, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu      sync.Mutex
		rels    = []common.Relationship{}
		stopped bool
	)
	enough := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stopped
	}

	eg := new(errgroup.Group)
	eg.SetLimit(e.cfg.ParallelBatches)

	for start := 0; start < len(candidates); start += e.cfg.BatchSize {
		if enough() || runCtx.Err() != nil {
			break
		}
		end := min(start+e.cfg.BatchSize, len(candidates))
		batch := make([]common.Article, 0, end-start)
		for _, c := range candidates[start:end] {
			batch = append(batch, c.Article)
		}

		eg.Go(func() error {
			found := e.classifyBatch(runCtx, source, batch)
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				return nil
			}
			rels = append(rels, found...)
			if len(rels) >= maxRelationships {
				stopped = true
				record(e.tracer, TraceEvent{Kind: TraceEventEarlyStop, SourceID: string(source.ID), Count: len(rels)})
				stop()
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}

func (e *Engine) classifyBatch(ctx context.Context, source common.Article, batch []common.Article) []common.Relationship {
	ids := make([]string, len(batch))
	for i, a := range batch {
		ids[i] = string(a.ID)
	}

	fail := func(err error, started time.Time) []common.Relationship {
		// cancelled by early stop or by the caller
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("Classifier batch failed", "source", source.ID, "candidates", ids, "err", err)
		record(e.tracer, TraceEvent{
			Kind:         TraceEventBatchFailed,
			SourceID:     string(source.ID),
			CandidateIDs: ids,
			DurationMs:   time.Since(started).Milliseconds(),
			Error:        err.Error(),
		})
		return nil
	}

	if ctx.Err() != nil {
		return nil
	}

	started := time.Now()
	bctx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Wait(bctx); err != nil {
			return fail(fmt.Errorf("%w: %v", common.ErrClassifierUnavailable, err), started)
		}
	}

	record(e.tracer, TraceEvent{Kind: TraceEventClassifierCall, SourceID: string(source.ID), CandidateIDs: ids})
	edges, err := e.classifier.ClassifyBatch(bctx, source, batch)
	if err != nil {
		return fail(err, started)
	}

	return validateEdges(source, batch, edges, e.cfg.ConfidenceThreshold, e.now(), func(target, reason string) {
		log.Debug("Dropped classifier edge", "source", source.ID, "target", target, "reason", reason)
		record(e.tracer, TraceEvent{Kind: TraceEventEdgeDropped, SourceID: string(source.ID), TargetID: target, Reason: reason})
	})
}

// sortRelationships orders by confidence descending. Ties fall back to
// target ID and type so the order does not depend on batch completion.
func sortRelationships(rels []common.Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Type < b.Type
	})
}

// PairClassification is the judgment for one ordered article pair.
type PairClassification struct {
	Type        string  `json:"relationship_type"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

const unknownRelationship = "UNKNOWN"

// ClassifyPair asks the classifier about a single pair, bypassing
// candidate selection, cache and threshold. A classifier failure is
// reported as an UNKNOWN classification.
func (e *Engine) ClassifyPair(ctx context.Context, sourceID, targetID common.ArticleID) (PairClassification, error) {
	source, err := e.articles.Get(sourceID)
	if err != nil {
		return PairClassification{}, err
	}
	target, err := e.articles.Get(targetID)
	if err != nil {
		return PairClassification{}, err
	}

	bctx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	defer cancel()
	edges, err := e.classifier.ClassifyBatch(bctx, source, []common.Article{target})
	if err != nil {
		log.Warn("Pair classification failed", "source", sourceID, "target", targetID, "err", err)
		return PairClassification{Type: unknownRelationship, Explanation: "Error in classification"}, nil
	}

	rels := validateEdges(source, []common.Article{target}, edges, 0, e.now(), func(string, string) {})
	if len(rels) == 0 {
		return PairClassification{Type: unknownRelationship, Explanation: "No causal relationship identified"}, nil
	}
	sortRelationships(rels)
	return PairClassification{
		Type:        string(rels[0].Type),
		Confidence:  rels[0].Confidence,
		Explanation: rels[0].Explanation,
	}, nil
}
