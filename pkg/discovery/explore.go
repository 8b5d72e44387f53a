package discovery

import (
	"context"
	"slices"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

const (
	impactWebFanout       = 5
	relationshipChainFan  = 10
	relationshipChainPath = 5
)

// ImpactNode is one relationship in an impact web with the impacts that
// follow from its target.
type ImpactNode struct {
	Article      common.Article      `json:"article"`
	Relationship common.Relationship `json:"relationship"`
	Downstream   []ImpactNode        `json:"downstream_impacts"`
}

type ImpactWeb struct {
	Root    common.Article `json:"root"`
	Impacts []ImpactNode   `json:"impacts"`
}

// ImpactWeb expands discovered relationships from id into a tree of the
// given depth, at most five relationships per node. Each branch keeps its
// own visited set so an article may appear under different branches.
func (e *Engine) ImpactWeb(ctx context.Context, id common.ArticleID, depth int) (ImpactWeb, error) {
	root, err := e.articles.Get(id)
	if err != nil {
		return ImpactWeb{}, err
	}
	if depth <= 0 {
		depth = 2
	}
	impacts, err := e.exploreImpacts(ctx, id, depth, map[common.ArticleID]struct{}{})
	if err != nil {
		return ImpactWeb{}, err
	}
	return ImpactWeb{Root: withoutEmbedding(root), Impacts: impacts}, nil
}

func (e *Engine) exploreImpacts(
	ctx context.Context,
	id common.ArticleID,
	remaining int,
	visited map[common.ArticleID]struct{},
) ([]ImpactNode, error) {
	out := []ImpactNode{}
	if remaining == 0 {
		return out, nil
	}
	if _, ok := visited[id]; ok {
		return out, nil
	}
	visited[id] = struct{}{}

	rels, err := e.Discover(ctx, id, impactWebFanout)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		target, err := e.articles.Get(rel.TargetID)
		if err != nil {
			return nil, err
		}
		node := ImpactNode{
			Article:      withoutEmbedding(target),
			Relationship: rel,
			Downstream:   []ImpactNode{},
		}
		if remaining > 1 {
			branch := make(map[common.ArticleID]struct{}, len(visited))
			for k := range visited {
				branch[k] = struct{}{}
			}
			node.Downstream, err = e.exploreImpacts(ctx, rel.TargetID, remaining-1, branch)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, node)
	}
	return out, nil
}

// RelationshipChains searches breadth-first through discovered
// relationships for paths from start to end. A path holds at most
// maxDepth articles, and at most five paths are returned in discovery
// order.
func (e *Engine) RelationshipChains(ctx context.Context, start, end common.ArticleID, maxDepth int) ([][]common.ArticleID, error) {
	if _, err := e.articles.Get(start); err != nil {
		return nil, err
	}
	if _, err := e.articles.Get(end); err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	type item struct {
		id   common.ArticleID
		path []common.ArticleID
	}
	paths := [][]common.ArticleID{}
	queue := []item{{id: start, path: []common.ArticleID{start}}}
	visited := map[common.ArticleID]struct{}{}

	for len(queue) > 0 && len(paths) < relationshipChainPath {
		cur := queue[0]
		queue = queue[1:]

		if len(cur.path) > maxDepth {
			continue
		}
		if cur.id == end && len(cur.path) > 1 {
			paths = append(paths, cur.path)
			continue
		}
		if _, ok := visited[cur.id]; ok {
			continue
		}
		visited[cur.id] = struct{}{}

		rels, err := e.Discover(ctx, cur.id, relationshipChainFan)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if slices.Contains(cur.path, rel.TargetID) {
				continue
			}
			next := make([]common.ArticleID, len(cur.path), len(cur.path)+1)
			copy(next, cur.path)
			queue = append(queue, item{id: rel.TargetID, path: append(next, rel.TargetID)})
		}
	}
	return paths, nil
}

func withoutEmbedding(a common.Article) common.Article {
	a.Embedding = nil
	return a
}
