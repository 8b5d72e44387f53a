/*
Package chain builds ranked causation chains from the causation graph.

A free-text query selects up to three starting articles. From each start a
depth-bounded search over outgoing edges emits every path of two or more
nodes. Paths are deduplicated by node sequence, scored, labelled with the
best matching causation pattern and truncated to the top results.
*/
package chain

import (
	"math"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var log = logger.Component("Chain")

// Graph is the part of the causation graph the builder reads.
type Graph interface {
	HasNode(id common.ArticleID) bool
	Successors(id common.ArticleID) []common.ArticleID
	Predecessors(id common.ArticleID) []common.ArticleID
	Ancestors(id common.ArticleID) []common.ArticleID
	PathEdges(path []common.ArticleID) ([]graph.Edge, bool)
	SimplePaths(source, target common.ArticleID, cutoff int) [][]common.ArticleID
	SimpleCycles(minLen, maxLen int) [][]common.ArticleID
}

// Articles supplies fresh node snapshots.
type Articles interface {
	Get(id common.ArticleID) (common.Article, error)
	All() []common.Article
}

type Config struct {
	MaxDepth  int
	TopStarts int
	MaxChains int
	// MatchThreshold is the keyword fraction a pattern must exceed.
	MatchThreshold float64
	Patterns       []common.CausationPattern
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:       5,
		TopStarts:      3,
		MaxChains:      10,
		MatchThreshold: 0.5,
		Patterns:       common.DefaultPatterns,
	}
}

type Builder struct {
	graph    Graph
	articles Articles
	cfg      Config
}

func NewBuilder(g Graph, articles Articles, cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.TopStarts <= 0 {
		cfg.TopStarts = def.TopStarts
	}
	if cfg.MaxChains <= 0 {
		cfg.MaxChains = def.MaxChains
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = def.MatchThreshold
	}
	if cfg.Patterns == nil {
		cfg.Patterns = def.Patterns
	}
	return &Builder{graph: g, articles: articles, cfg: cfg}
}

func (b *Builder) Config() Config {
	return b.cfg
}

// Relevant is an article matched by a free-text query.
type Relevant struct {
	Article common.Article `json:"article"`
	Score   float64        `json:"score"`
}

// FindRelevant scores every article against query: 2 for a title match,
// 1 for a body match and 1.5 for each entity containing the query.
// Matching is case-insensitive substring search. Articles scoring zero
// are left out.
func (b *Builder) FindRelevant(query string) []Relevant {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Relevant{}
	if q == "" {
		return out
	}
	for _, a := range b.articles.All() {
		score := 0.0
		if strings.Contains(strings.ToLower(a.Title), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(a.Content), q) {
			score += 1
		}
		for _, e := range a.Entities {
			if strings.Contains(strings.ToLower(e), q) {
				score += 1.5
			}
		}
		if score > 0 {
			out = append(out, Relevant{Article: a, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// BuildCausationChain returns the top ranked chains reachable from the
// articles most relevant to query. maxDepth bounds the number of hops;
// zero uses the configured default. No match yields an empty list.
func (b *Builder) BuildCausationChain(query string, maxDepth int) []common.CausationChain {
	if maxDepth <= 0 {
		maxDepth = b.cfg.MaxDepth
	}

	relevant := b.FindRelevant(query)
	if len(relevant) == 0 {
		log.Debug("No relevant articles", "query", query)
		return []common.CausationChain{}
	}

	var paths [][]common.ArticleID
	for i, r := range relevant {
		if i >= b.cfg.TopStarts {
			break
		}
		if !b.graph.HasNode(r.Article.ID) {
			continue
		}
		paths = append(paths, b.trace(r.Article.ID, maxDepth)...)
	}

	chains := make([]common.CausationChain, 0, len(paths))
	for _, p := range paths {
		c, ok := b.chainFromPath(p)
		if !ok {
			continue
		}
		chains = append(chains, c)
	}

	chains = Dedupe(chains)
	for i := range chains {
		chains[i].Score = Score(chains[i])
		chains[i].Pattern = MatchPattern(chains[i], b.cfg.Patterns, b.cfg.MatchThreshold)
	}
	Rank(chains)
	if len(chains) > b.cfg.MaxChains {
		chains = chains[:b.cfg.MaxChains]
	}

	log.Info("Built causation chains", "query", query, "paths", len(paths), "chains", len(chains))
	return chains
}

type frame struct {
	node    common.ArticleID
	path    []common.ArticleID
	visited map[common.ArticleID]struct{}
	// expanded is set once the successors of node have been pushed.
	expanded bool
}

// trace walks outgoing edges from start and returns every path of at least
// two nodes and at most maxDepth hops. The visited set is per branch, so a
// node may appear again on a different route.
func (b *Builder) trace(start common.ArticleID, maxDepth int) [][]common.ArticleID {
	paths := [][]common.ArticleID{}
	stack := []*frame{{
		node:    start,
		path:    []common.ArticleID{start},
		visited: map[common.ArticleID]struct{}{start: {}},
	}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]

		if len(f.path)-1 >= maxDepth || f.expanded {
			stack = stack[:len(stack)-1]
			if len(f.path) > 1 {
				paths = append(paths, f.path)
			}
			continue
		}
		f.expanded = true

		succ := b.graph.Successors(f.node)
		for i := len(succ) - 1; i >= 0; i-- {
			n := succ[i]
			if _, ok := f.visited[n]; ok {
				continue
			}
			path := append(append(make([]common.ArticleID, 0, len(f.path)+1), f.path...), n)
			visited := make(map[common.ArticleID]struct{}, len(f.visited)+1)
			for k := range f.visited {
				visited[k] = struct{}{}
			}
			visited[n] = struct{}{}
			stack = append(stack, &frame{node: n, path: path, visited: visited})
		}
	}
	return paths
}

// chainFromPath resolves a node sequence into a chain, taking the most
// confident edge for each hop.
func (b *Builder) chainFromPath(path []common.ArticleID) (common.CausationChain, bool) {
	if len(path) < 2 {
		return common.CausationChain{}, false
	}
	edges, ok := b.graph.PathEdges(path)
	if !ok {
		return common.CausationChain{}, false
	}

	c := common.CausationChain{
		Nodes: make([]common.CausationNode, 0, len(path)),
		Links: make([]common.CausationLink, 0, len(edges)),
	}
	for _, id := range path {
		a, err := b.articles.Get(id)
		if err != nil {
			log.Warn("Article missing from store", "id", id)
			return common.CausationChain{}, false
		}
		c.Nodes = append(c.Nodes, common.NodeFromArticle(a))
		c.TotalImpact += a.ImpactScore
	}
	conf := 0.0
	for _, e := range edges {
		c.Links = append(c.Links, e.Link())
		conf += e.Confidence
	}
	c.Confidence = conf / float64(len(edges))
	c.Length = len(c.Nodes)
	c.Summary = c.Summarize()

	id, err := gonanoid.New()
	if err != nil {
		log.Warn("Failed to generate chain id", "err", err)
	}
	c.ID = id
	return c, true
}

// Dedupe keeps the first chain for every node sequence.
func Dedupe(chains []common.CausationChain) []common.CausationChain {
	out := make([]common.CausationChain, 0, len(chains))
	seen := make(map[string]struct{}, len(chains))
	for _, c := range chains {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// TemporalCoherence is 0.8 to the power of the number of links whose
// effect predates its cause.
func TemporalCoherence(c common.CausationChain) float64 {
	coherence := 1.0
	for _, l := range c.Links {
		if l.TemporalGapDays < 0 {
			coherence *= 0.8
		}
	}
	return coherence
}

// Score ranks a chain by mean node impact, mean link confidence, length
// and temporal coherence.
func Score(c common.CausationChain) float64 {
	if len(c.Nodes) == 0 {
		return 0
	}
	impact := c.TotalImpact / float64(len(c.Nodes))
	length := math.Min(float64(len(c.Nodes))/3, 1)
	return 0.4*impact + 0.3*c.Confidence + 0.2*length + 0.1*TemporalCoherence(c)
}

// Rank orders chains by score, breaking ties on the node sequence so the
// result does not depend on traversal order.
func Rank(chains []common.CausationChain) {
	sort.SliceStable(chains, func(i, j int) bool {
		if chains[i].Score != chains[j].Score {
			return chains[i].Score > chains[j].Score
		}
		return chains[i].Key() < chains[j].Key()
	})
}

// MatchPattern returns the name of the pattern whose keywords appear in the
// chain's titles and tags with the highest fraction above threshold. The
// earlier pattern wins a tie. No match yields "".
func MatchPattern(c common.CausationChain, patterns []common.CausationPattern, threshold float64) string {
	var b strings.Builder
	for _, n := range c.Nodes {
		b.WriteString(strings.ToLower(n.Title))
		b.WriteByte(' ')
		for _, t := range n.Tags {
			b.WriteString(strings.ToLower(t))
			b.WriteByte(' ')
		}
	}
	text := b.String()

	best, bestScore := "", 0.0
	for _, p := range patterns {
		if len(p.Sequence) == 0 {
			continue
		}
		found := 0
		for _, kw := range p.Sequence {
			if strings.Contains(text, strings.ToLower(kw)) {
				found++
			}
		}
		score := float64(found) / float64(len(p.Sequence))
		if score > threshold && score > bestScore {
			best, bestScore = p.Name, score
		}
	}
	return best
}
