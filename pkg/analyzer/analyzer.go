/*
Package analyzer exposes every causation operation behind one facade.

The analyzer owns the causation graph, the knowledge graph and the pattern
database, keeps them in step when articles are ingested, and runs
discovery on demand for articles the graph does not cover yet.
*/
package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/chain"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/discovery"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
	"github.com/OFFIS-RIT/ripple/pkg/knowledge"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
	"github.com/OFFIS-RIT/ripple/pkg/ripple"
	"github.com/OFFIS-RIT/ripple/pkg/store"
)

var log = logger.Component("Analyzer")

// Sink persists ingested articles.
type Sink interface {
	Save(ctx context.Context, a common.Article) error
}

type Params struct {
	Store  *store.ArticleStore
	Engine *discovery.Engine
	// ParallelArticles bounds concurrent discovery during Build.
	ParallelArticles int
	Chain            chain.Config
	// Forecaster and Timeline are optional; predictions fall back to
	// historical patterns without them.
	Forecaster ripple.Forecaster
	Timeline   ripple.TimelineEstimator
	// Indicators lists early warning indicators for predictions. Optional.
	Indicators ripple.IndicatorFinder
	// Embedder embeds ingested articles. Optional.
	Embedder ai.Embedder
	// Sink persists ingested articles. Optional.
	Sink Sink
}

type Analyzer struct {
	store      *store.ArticleStore
	engine     *discovery.Engine
	graph      *graph.CausationGraph
	chains     *chain.Builder
	propagator *ripple.Propagator
	patterns   *ripple.PatternDB
	predictor  *ripple.Predictor
	knowledge  *knowledge.Graph
	embedder   ai.Embedder
	sink       Sink

	mu      sync.Mutex
	covered map[common.ArticleID]struct{}
	// ingest serializes ingestion so store, graphs and pattern database
	// see articles in the same order.
	ingest sync.Mutex
}

func New(p Params) (*Analyzer, error) {
	if p.Store == nil || p.Engine == nil {
		return nil, fmt.Errorf("%w: analyzer needs an article store and a discovery engine", common.ErrConfiguration)
	}

	g := graph.NewCausationGraph(graph.NewGraphParams{ParallelArticles: p.ParallelArticles})
	for _, a := range p.Store.All() {
		g.AddNode(a)
	}
	chains := chain.NewBuilder(g, p.Store, p.Chain)
	propagator := ripple.NewPropagator(g, p.Store)
	patterns := ripple.NewPatternDB()

	var opts []ripple.PredictorOption
	if p.Forecaster != nil {
		opts = append(opts, ripple.WithForecaster(p.Forecaster))
	}
	if p.Timeline != nil {
		opts = append(opts, ripple.WithTimelineEstimator(p.Timeline))
	}
	if p.Indicators != nil {
		opts = append(opts, ripple.WithIndicatorFinder(p.Indicators))
	}

	return &Analyzer{
		store:      p.Store,
		engine:     p.Engine,
		graph:      g,
		chains:     chains,
		propagator: propagator,
		patterns:   patterns,
		predictor:  ripple.NewPredictor(p.Store, chains, propagator, patterns, opts...),
		knowledge:  knowledge.Build(p.Store.All(), nil),
		embedder:   p.Embedder,
		sink:       p.Sink,
		covered:    make(map[common.ArticleID]struct{}),
	}, nil
}

// Build runs discovery for every article, then rebuilds the knowledge
// graph and the pattern database.
func (a *Analyzer) Build(ctx context.Context) error {
	a.ingest.Lock()
	defer a.ingest.Unlock()

	articles := a.store.All()
	if err := a.graph.Build(ctx, articles, a.engine); err != nil {
		return fmt.Errorf("failed to build causation graph: %w", err)
	}

	a.mu.Lock()
	a.covered = make(map[common.ArticleID]struct{}, len(articles))
	for _, art := range articles {
		a.covered[art.ID] = struct{}{}
	}
	a.knowledge = knowledge.Build(articles, a.graph.AllEdges())
	a.mu.Unlock()

	a.patterns.Rebuild(a.propagator, articles)
	return nil
}

func (a *Analyzer) State() graph.State {
	return a.graph.State()
}

func (a *Analyzer) Graph() *graph.CausationGraph {
	return a.graph
}

func (a *Analyzer) Store() *store.ArticleStore {
	return a.store
}

func (a *Analyzer) knowledgeGraph() *knowledge.Graph {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.knowledge
}

func (a *Analyzer) isCovered(id common.ArticleID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.covered[id]
	return ok
}

// ensureCovered runs discovery for articles whose relationships are not in
// the graph yet and merges the results.
func (a *Analyzer) ensureCovered(ctx context.Context, ids ...common.ArticleID) error {
	for _, id := range ids {
		if a.isCovered(id) {
			continue
		}
		art, err := a.store.Get(id)
		if err != nil {
			return err
		}
		if _, err := a.merge(ctx, art); err != nil {
			return err
		}
	}
	return nil
}

// coverReachable covers ids and, while the graph is not built, every
// article reachable from them within hops, discovering one level at a time.
func (a *Analyzer) coverReachable(ctx context.Context, hops int, ids ...common.ArticleID) error {
	if a.graph.State() == graph.Ready {
		return a.ensureCovered(ctx, ids...)
	}
	seen := make(map[common.ArticleID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	frontier := ids
	for hop := 0; len(frontier) > 0; hop++ {
		if err := a.ensureCovered(ctx, frontier...); err != nil {
			return err
		}
		if hop == hops {
			break
		}
		var next []common.ArticleID
		for _, id := range frontier {
			for _, e := range a.graph.OutEdges(id) {
				if _, ok := seen[e.TargetID]; ok {
					continue
				}
				seen[e.TargetID] = struct{}{}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}
	return nil
}

// merge adds art and its discovered relationships to both graphs.
func (a *Analyzer) merge(ctx context.Context, art common.Article) ([]common.Relationship, error) {
	rels, err := a.graph.Add(ctx, art, a.engine, a.store)
	if err != nil {
		return nil, err
	}

	kg := a.knowledgeGraph()
	kg.AddEvent(art)
	for _, e := range a.graph.OutEdges(art.ID) {
		if err := kg.AddCausalEdge(e); err != nil {
			log.Warn("Skipping knowledge edge", "source", e.SourceID, "target", e.TargetID, "err", err)
		}
	}

	a.mu.Lock()
	a.covered[art.ID] = struct{}{}
	a.mu.Unlock()
	return rels, nil
}

func (a *Analyzer) DiscoverRelationships(ctx context.Context, id common.ArticleID, maxRelationships int) ([]common.Relationship, error) {
	return a.engine.Discover(ctx, id, maxRelationships)
}

// BuildCausationChain covers the starting articles for query before
// building chains.
func (a *Analyzer) BuildCausationChain(ctx context.Context, query string, maxDepth int) ([]common.CausationChain, error) {
	relevant := a.chains.FindRelevant(query)
	starts := make([]common.ArticleID, 0, a.chains.Config().TopStarts)
	for i, r := range relevant {
		if i >= a.chains.Config().TopStarts {
			break
		}
		starts = append(starts, r.Article.ID)
	}
	depth := maxDepth
	if depth <= 0 {
		depth = a.chains.Config().MaxDepth
	}
	if err := a.coverReachable(ctx, depth, starts...); err != nil {
		return nil, err
	}
	return a.chains.BuildCausationChain(query, maxDepth), nil
}

func (a *Analyzer) TrackRippleEffects(ctx context.Context, id common.ArticleID, maxHops int) (ripple.Report, error) {
	hops := maxHops
	if hops <= 0 {
		hops = ripple.DefaultMaxHops
	}
	if err := a.coverReachable(ctx, hops, id); err != nil {
		return ripple.Report{}, err
	}
	return a.propagator.Track(id, maxHops)
}

// PredictRippleEffects forecasts the effects of event. The event does not
// have to be in the store.
func (a *Analyzer) PredictRippleEffects(ctx context.Context, event common.Article, horizonDays int) ([]ripple.Prediction, error) {
	if a.store.Has(event.ID) {
		if err := a.ensureCovered(ctx, event.ID); err != nil {
			return nil, err
		}
	}
	return a.predictor.Predict(ctx, event, horizonDays)
}

// PredictFromQuery predicts the effects of the article best matching a
// free-text event description. No match yields an empty list.
func (a *Analyzer) PredictFromQuery(ctx context.Context, query string, horizonDays int) ([]ripple.Prediction, error) {
	event, ok := a.predictor.FindEvent(query)
	if !ok {
		log.Warn("No matching article found", "query", query)
		return []ripple.Prediction{}, nil
	}
	return a.PredictRippleEffects(ctx, event, horizonDays)
}

func (a *Analyzer) EarlyIndicators(ctx context.Context, pred ripple.Prediction) []ripple.EarlyIndicator {
	return a.predictor.EarlyIndicators(ctx, pred)
}

func (a *Analyzer) AffectedIndustries(ctx context.Context, event common.Article) (ripple.IndustryReport, error) {
	if a.store.Has(event.ID) {
		if err := a.ensureCovered(ctx, event.ID); err != nil {
			return ripple.IndustryReport{}, err
		}
	}
	return a.predictor.AffectedIndustries(ctx, event)
}

func (a *Analyzer) EstimateTimeline(ctx context.Context, id common.ArticleID, target string) (ripple.TimelineEstimate, error) {
	return a.predictor.EstimateTimeline(ctx, id, target)
}

func (a *Analyzer) RootCauses(ctx context.Context, id common.ArticleID) ([]chain.RootCause, error) {
	if err := a.ensureCovered(ctx, id); err != nil {
		return nil, err
	}
	return a.chains.RootCauses(id)
}

// FeedbackLoops fails with ErrGraphNotReady while the graph is being built.
func (a *Analyzer) FeedbackLoops() ([]chain.FeedbackLoop, error) {
	if a.graph.State() == graph.Building {
		return nil, common.ErrGraphNotReady
	}
	return a.chains.FeedbackLoops(), nil
}

func (a *Analyzer) ImpactWeb(ctx context.Context, id common.ArticleID, depth int) (discovery.ImpactWeb, error) {
	return a.engine.ImpactWeb(ctx, id, depth)
}

func (a *Analyzer) RelationshipChains(ctx context.Context, start, end common.ArticleID, maxDepth int) ([][]common.ArticleID, error) {
	return a.engine.RelationshipChains(ctx, start, end, maxDepth)
}

func (a *Analyzer) ClassifyPair(ctx context.Context, source, target common.ArticleID) (discovery.PairClassification, error) {
	return a.engine.ClassifyPair(ctx, source, target)
}

// SimilarPatterns lists the cascade patterns the article's event resembles.
func (a *Analyzer) SimilarPatterns(id common.ArticleID) ([]knowledge.PatternMatch, error) {
	if !a.store.Has(id) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	return a.knowledgeGraph().SimilarPatterns(id), nil
}

func (a *Analyzer) QueryImpactPath(from, to string, maxLength int) [][]knowledge.PathNode {
	return a.knowledgeGraph().QueryImpactPath(from, to, maxLength)
}

// CausalStats describes the causation graph itself.
type CausalStats struct {
	State string `json:"state"`
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
}

type Statistics struct {
	knowledge.Stats
	Causal   CausalStats `json:"causation_graph"`
	Patterns int         `json:"pattern_database_keys"`
}

// GraphStatistics fails with ErrGraphNotReady while the graph is being
// built.
func (a *Analyzer) GraphStatistics() (Statistics, error) {
	if a.graph.State() == graph.Building {
		return Statistics{}, common.ErrGraphNotReady
	}
	return Statistics{
		Stats: a.knowledgeGraph().Statistics(),
		Causal: CausalStats{
			State: a.graph.State().String(),
			Nodes: a.graph.NodeCount(),
			Edges: a.graph.EdgeCount(),
		},
		Patterns: a.patterns.Len(),
	}, nil
}

type IngestResult struct {
	Article       common.Article        `json:"article"`
	Relationships []common.Relationship `json:"relationships"`
}

// Ingest adds a new article: it is embedded when an embedder is set,
// persisted when a sink is set, added to the store, merged into both
// graphs and appended to the pattern database.
func (a *Analyzer) Ingest(ctx context.Context, art common.Article) (IngestResult, error) {
	a.ingest.Lock()
	defer a.ingest.Unlock()

	if a.store.Has(art.ID) {
		return IngestResult{}, fmt.Errorf("%w: %s", common.ErrDuplicateArticle, art.ID)
	}
	if err := store.EmbedArticle(ctx, &art, a.embedder); err != nil {
		log.Warn("Embedding failed, continuing without", "id", art.ID, "err", err)
	}
	if a.sink != nil {
		if err := a.sink.Save(ctx, art); err != nil {
			return IngestResult{}, fmt.Errorf("failed to persist article %s: %w", art.ID, err)
		}
	}
	if err := a.store.Add(art); err != nil {
		return IngestResult{}, err
	}

	rels, err := a.merge(ctx, art)
	if err != nil {
		return IngestResult{}, err
	}
	if err := a.patterns.Append(a.propagator, art); err != nil {
		log.Warn("Pattern database append failed", "id", art.ID, "err", err)
	}

	log.Info("Ingested article", "id", art.ID, "relationships", len(rels))
	art.Embedding = nil
	return IngestResult{Article: art, Relationships: rels}, nil
}
