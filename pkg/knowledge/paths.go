package knowledge

import (
	"strings"
)

const (
	DefaultMaxPathLength = 5
	maxImpactPaths       = 5
)

type PathEdge struct {
	Type        string  `json:"type"`
	Weight      float64 `json:"weight"`
	Explanation string  `json:"explanation"`
}

// PathNode is one step of an impact path. EdgeToNext is nil on the last
// node.
type PathNode struct {
	NodeID     string         `json:"node_id"`
	Label      string         `json:"label"`
	Type       NodeType       `json:"type"`
	Properties map[string]any `json:"properties"`
	EdgeToNext *PathEdge      `json:"edge_to_next,omitempty"`
}

// FindEvent returns the first event node whose label or full title
// contains query, ignoring case.
func (g *Graph) FindEvent(query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Type != EventNode {
			continue
		}
		if strings.Contains(strings.ToLower(n.Label), q) {
			return id, true
		}
		if title, ok := n.Properties["full_title"].(string); ok && strings.Contains(strings.ToLower(title), q) {
			return id, true
		}
	}
	return "", false
}

// QueryImpactPath resolves both queries to events and returns up to five
// simple paths of at most maxLength edges between them. Unresolved queries
// and unconnected events both yield an empty list.
func (g *Graph) QueryImpactPath(from, to string, maxLength int) [][]PathNode {
	if maxLength <= 0 {
		maxLength = DefaultMaxPathLength
	}
	out := [][]PathNode{}

	src, ok := g.FindEvent(from)
	if !ok {
		log.Warn("No event matches query", "query", from)
		return out
	}
	dst, ok := g.FindEvent(to)
	if !ok {
		log.Warn("No event matches query", "query", to)
		return out
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.simplePathsLocked(src, dst, maxLength, maxImpactPaths) {
		out = append(out, g.pathDetailsLocked(p))
	}
	if len(out) == 0 {
		log.Info("No impact path found", "from", from, "to", to)
	}
	return out
}

func (g *Graph) simplePathsLocked(source, target string, cutoff, limit int) [][]string {
	var paths [][]string
	if source == target {
		return paths
	}

	type frame struct {
		node    string
		path    []string
		visited map[string]struct{}
	}
	stack := []frame{{node: source, path: []string{source}, visited: map[string]struct{}{source: {}}}}
	for len(stack) > 0 && len(paths) < limit {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == target {
			paths = append(paths, f.path)
			continue
		}
		if len(f.path)-1 >= cutoff {
			continue
		}
		succ := g.successorsLocked(f.node)
		for i := len(succ) - 1; i >= 0; i-- {
			n := succ[i]
			if _, ok := f.visited[n]; ok {
				continue
			}
			visited := make(map[string]struct{}, len(f.visited)+1)
			for k := range f.visited {
				visited[k] = struct{}{}
			}
			visited[n] = struct{}{}
			path := append(append(make([]string, 0, len(f.path)+1), f.path...), n)
			stack = append(stack, frame{node: n, path: path, visited: visited})
		}
	}
	return paths
}

func (g *Graph) pathDetailsLocked(path []string) []PathNode {
	out := make([]PathNode, len(path))
	for i, id := range path {
		n := g.nodes[id]
		out[i] = PathNode{NodeID: id, Label: n.Label, Type: n.Type, Properties: n.Properties}
		if i+1 < len(path) {
			if e, ok := g.firstEdgeLocked(id, path[i+1]); ok {
				out[i].EdgeToNext = &PathEdge{Type: e.Type, Weight: e.Weight, Explanation: e.Explanation}
			}
		}
	}
	return out
}
