package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
)

const (
	// RootImpactScore marks an ancestor as a root cause even when it has
	// causes of its own.
	RootImpactScore = 8.0

	maxRootPaths  = 3
	maxRootCauses = 5
)

type RootCause struct {
	Root        common.Article        `json:"root_article"`
	Chain       common.CausationChain `json:"chain"`
	PathSummary string                `json:"path_summary"`
}

// RootCauses traces the article back to the ancestors that start its
// causal history: nodes without predecessors or with a high impact score.
// Each root contributes up to three paths; the five most impactful are
// returned.
func (b *Builder) RootCauses(id common.ArticleID) ([]RootCause, error) {
	if _, err := b.articles.Get(id); err != nil {
		return nil, fmt.Errorf("root causes of %s: %w", id, err)
	}

	out := []RootCause{}
	if !b.graph.HasNode(id) {
		return out, nil
	}

	for _, anc := range b.graph.Ancestors(id) {
		root, err := b.articles.Get(anc)
		if err != nil {
			continue
		}
		if len(b.graph.Predecessors(anc)) > 0 && root.ImpactScore < RootImpactScore {
			continue
		}

		paths := b.graph.SimplePaths(anc, id, b.cfg.MaxDepth)
		if len(paths) > maxRootPaths {
			paths = paths[:maxRootPaths]
		}
		for _, p := range paths {
			c, ok := b.chainFromPath(p)
			if !ok {
				continue
			}
			c.Score = Score(c)
			c.Pattern = MatchPattern(c, b.cfg.Patterns, b.cfg.MatchThreshold)
			out = append(out, RootCause{Root: withoutEmbedding(root), Chain: c, PathSummary: c.Summary})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Root.ImpactScore > out[j].Root.ImpactScore
	})
	if len(out) > maxRootCauses {
		out = out[:maxRootCauses]
	}
	return out, nil
}

type FeedbackLoop struct {
	Cycle       []common.ArticleID    `json:"cycle"`
	Chain       common.CausationChain `json:"chain"`
	Description string                `json:"description"`
}

// FeedbackLoops reports every cycle of two to five articles.
func (b *Builder) FeedbackLoops() []FeedbackLoop {
	out := []FeedbackLoop{}
	for _, cycle := range b.graph.SimpleCycles(graph.DefaultMinCycle, graph.DefaultMaxCycle) {
		c, ok := b.chainFromPath(cycle)
		if !ok {
			continue
		}
		c.Score = Score(c)
		titles := make([]string, len(c.Nodes))
		for i, n := range c.Nodes {
			titles[i] = n.Title
		}
		out = append(out, FeedbackLoop{
			Cycle:       cycle,
			Chain:       c,
			Description: strings.Join(titles, " → ") + " → (back to start)",
		})
	}
	if len(out) > 0 {
		log.Info("Found feedback loops", "count", len(out))
	}
	return out
}

func withoutEmbedding(a common.Article) common.Article {
	a.Embedding = nil
	return a
}
