package graph

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var log = logger.Component("Graph")

// Discoverer produces the relationships of one article.
type Discoverer interface {
	Discover(ctx context.Context, id common.ArticleID, maxRelationships int) ([]common.Relationship, error)
}

// NodeSource resolves articles that are not nodes yet.
type NodeSource interface {
	Get(id common.ArticleID) (common.Article, error)
}

// Build replaces the graph contents with one node per article and the
// union of every article's discovered relationships. Discovery runs on up
// to ParallelArticles articles at once. On error the graph is left
// unbuilt, with its nodes but without edges.
func (g *CausationGraph) Build(ctx context.Context, articles []common.Article, d Discoverer) error {
	if len(articles) == 0 {
		return common.ErrEmptyCorpus
	}

	g.mu.Lock()
	if g.state == Building {
		g.mu.Unlock()
		return fmt.Errorf("graph build already in progress")
	}
	g.state = Building
	g.reset()
	for _, a := range articles {
		g.addNodeLocked(a)
	}
	g.mu.Unlock()

	log.Info("Building causation graph", "articles", len(articles), "parallel", g.parallel)

	var done atomic.Int64
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallel)
	for _, a := range articles {
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			rels, err := d.Discover(gCtx, a.ID, 0)
			if err != nil {
				return fmt.Errorf("failed to discover relationships for %s: %w", a.ID, err)
			}

			g.mu.Lock()
			for _, rel := range rels {
				if err := g.addRelationshipLocked(rel); err != nil {
					log.Warn("Skipping relationship", "source", rel.SourceID, "target", rel.TargetID, "err", err)
				}
			}
			g.mu.Unlock()

			if n := done.Add(1); n%50 == 0 {
				log.Debug("Build progress", "done", n, "total", len(articles))
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		g.mu.Lock()
		g.reset()
		for _, a := range articles {
			g.addNodeLocked(a)
		}
		g.state = Unbuilt
		g.mu.Unlock()
		return err
	}

	g.setState(Ready)
	log.Info("Causation graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}

// Add inserts one new article and runs discovery for it alone. Existing
// nodes keep their edges. Relationship targets missing from the graph are
// looked up in nodes; only those are added.
func (g *CausationGraph) Add(ctx context.Context, a common.Article, d Discoverer, nodes NodeSource) ([]common.Relationship, error) {
	g.AddNode(a)

	rels, err := d.Discover(ctx, a.ID, 0)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	added := make([]common.Relationship, 0, len(rels))
	for _, rel := range rels {
		if _, ok := g.nodes[rel.TargetID]; !ok && nodes != nil {
			if target, err := nodes.Get(rel.TargetID); err == nil {
				g.addNodeLocked(target)
			}
		}
		if err := g.addRelationshipLocked(rel); err != nil {
			log.Warn("Skipping relationship", "source", rel.SourceID, "target", rel.TargetID, "err", err)
			continue
		}
		added = append(added, rel)
	}
	return added, nil
}
