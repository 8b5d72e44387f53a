package graph

import (
	"github.com/OFFIS-RIT/ripple/pkg/common"
)

const (
	DefaultMinCycle = 2
	DefaultMaxCycle = 5

	// maxEnumerated bounds path and cycle enumeration on dense graphs.
	maxEnumerated = 10000
)

// Descendants returns every node reachable from id, nearest first.
func (g *CausationGraph) Descendants(id common.ArticleID) []common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reachLocked(id, g.successorsLocked)
}

// Ancestors returns every node from which id is reachable, nearest first.
func (g *CausationGraph) Ancestors(id common.ArticleID) []common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reachLocked(id, g.predecessorsLocked)
}

func (g *CausationGraph) reachLocked(id common.ArticleID, next func(common.ArticleID) []common.ArticleID) []common.ArticleID {
	out := []common.ArticleID{}
	if _, ok := g.nodes[id]; !ok {
		return out
	}
	seen := map[common.ArticleID]struct{}{id: {}}
	queue := []common.ArticleID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next(cur) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	return out
}

// SimplePaths enumerates paths from source to target that repeat no node
// and use at most cutoff edges. Parallel edges do not multiply paths; each
// path is a node sequence.
func (g *CausationGraph) SimplePaths(source, target common.ArticleID, cutoff int) [][]common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := [][]common.ArticleID{}
	if source == target || cutoff < 1 {
		return paths
	}
	if _, ok := g.nodes[source]; !ok {
		return paths
	}
	if _, ok := g.nodes[target]; !ok {
		return paths
	}

	type frame struct {
		node    common.ArticleID
		path    []common.ArticleID
		visited map[common.ArticleID]struct{}
	}
	stack := []frame{{
		node:    source,
		path:    []common.ArticleID{source},
		visited: map[common.ArticleID]struct{}{source: {}},
	}}

	for len(stack) > 0 && len(paths) < maxEnumerated {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node == target {
			paths = append(paths, f.path)
			continue
		}

		succ := g.successorsLocked(f.node)
		// push in reverse so successors are explored in link order
		for i := len(succ) - 1; i >= 0; i-- {
			n := succ[i]
			if _, ok := f.visited[n]; ok {
				continue
			}
			hops := len(f.path)
			if hops > cutoff || (hops == cutoff && n != target) {
				continue
			}
			path := append(append(make([]common.ArticleID, 0, len(f.path)+1), f.path...), n)
			visited := make(map[common.ArticleID]struct{}, len(f.visited)+1)
			for k := range f.visited {
				visited[k] = struct{}{}
			}
			visited[n] = struct{}{}
			stack = append(stack, frame{node: n, path: path, visited: visited})
		}
	}
	return paths
}

// SimpleCycles enumerates elementary cycles of minLen to maxLen nodes.
// Each cycle is reported once, rotated to start at its earliest inserted
// node.
func (g *CausationGraph) SimpleCycles(minLen, maxLen int) [][]common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if minLen < 2 {
		minLen = 2
	}
	cycles := [][]common.ArticleID{}
	if maxLen < minLen {
		return cycles
	}

	var walk func(start common.ArticleID, path []common.ArticleID, onPath map[common.ArticleID]struct{})
	walk = func(start common.ArticleID, path []common.ArticleID, onPath map[common.ArticleID]struct{}) {
		if len(cycles) >= maxEnumerated {
			return
		}
		last := path[len(path)-1]
		for _, n := range g.out[last].targets {
			if n == start {
				if len(path) >= minLen {
					cycles = append(cycles, append([]common.ArticleID(nil), path...))
				}
				continue
			}
			if g.index[n] < g.index[start] {
				continue
			}
			if _, ok := onPath[n]; ok {
				continue
			}
			if len(path) >= maxLen {
				continue
			}
			onPath[n] = struct{}{}
			walk(start, append(path, n), onPath)
			delete(onPath, n)
		}
	}

	for _, start := range g.order {
		walk(start, []common.ArticleID{start}, map[common.ArticleID]struct{}{start: {}})
	}
	return cycles
}
