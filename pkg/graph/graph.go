/*
Package graph holds the causation graph: a directed multigraph over
articles whose edges are discovered relationships.

Two articles may be joined by several edges of different relationship
types. Traversals that need a single edge per hop use the most confident
one. Cycles are expected and are reported as feedback loops rather than
treated as errors.

The graph is safe for concurrent use.
*/
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// State is the build state of a graph.
type State int32

const (
	Unbuilt State = iota
	Building
	Ready
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Ready:
		return "ready"
	default:
		return "unbuilt"
	}
}

// Edge is a relationship as stored in the graph, with the signed gap in
// days between the source and target timestamps.
type Edge struct {
	SourceID        common.ArticleID        `json:"source_id"`
	TargetID        common.ArticleID        `json:"target_id"`
	Type            common.RelationshipType `json:"relationship_type"`
	Confidence      float64                 `json:"confidence"`
	Explanation     string                  `json:"explanation"`
	ImpactLevel     common.ImpactLevel      `json:"impact_level"`
	TemporalGapDays float64                 `json:"temporal_gap_days"`
	DiscoveredAt    time.Time               `json:"discovered_at"`
}

// Link converts e to its chain representation.
func (e Edge) Link() common.CausationLink {
	return common.CausationLink{
		SourceID:        e.SourceID,
		TargetID:        e.TargetID,
		Type:            e.Type,
		Confidence:      e.Confidence,
		Explanation:     e.Explanation,
		TemporalGapDays: e.TemporalGapDays,
	}
}

type adjacency struct {
	targets []common.ArticleID
	edges   map[common.ArticleID][]Edge
}

type CausationGraph struct {
	mu sync.RWMutex

	state    State
	parallel int

	order []common.ArticleID
	index map[common.ArticleID]int
	nodes map[common.ArticleID]common.CausationNode
	out   map[common.ArticleID]*adjacency
	in    map[common.ArticleID]map[common.ArticleID]struct{}

	edgeCount int
}

// NewGraphParams configures a CausationGraph.
//
// ParallelArticles bounds how many articles run discovery at once during
// Build.
type NewGraphParams struct {
	ParallelArticles int
}

func NewCausationGraph(params NewGraphParams) *CausationGraph {
	if params.ParallelArticles <= 0 {
		params.ParallelArticles = 4
	}
	g := &CausationGraph{parallel: params.ParallelArticles}
	g.reset()
	return g
}

func (g *CausationGraph) reset() {
	g.order = nil
	g.index = make(map[common.ArticleID]int)
	g.nodes = make(map[common.ArticleID]common.CausationNode)
	g.out = make(map[common.ArticleID]*adjacency)
	g.in = make(map[common.ArticleID]map[common.ArticleID]struct{})
	g.edgeCount = 0
}

func (g *CausationGraph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *CausationGraph) setState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// AddNode inserts a node for a. Adding an existing node is a no-op.
func (g *CausationGraph) AddNode(a common.Article) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(a)
}

func (g *CausationGraph) addNodeLocked(a common.Article) {
	if _, ok := g.nodes[a.ID]; ok {
		return
	}
	g.index[a.ID] = len(g.order)
	g.order = append(g.order, a.ID)
	g.nodes[a.ID] = common.NodeFromArticle(a)
	g.out[a.ID] = &adjacency{edges: make(map[common.ArticleID][]Edge)}
	g.in[a.ID] = make(map[common.ArticleID]struct{})
}

// AddRelationship inserts rel as an edge keyed by its type. Both ends must
// already be nodes. An edge of the same type between the same pair is
// replaced.
func (g *CausationGraph) AddRelationship(rel common.Relationship) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addRelationshipLocked(rel)
}

func (g *CausationGraph) addRelationshipLocked(rel common.Relationship) error {
	if rel.SourceID == rel.TargetID {
		return fmt.Errorf("self-loop on %s", rel.SourceID)
	}
	src, ok := g.nodes[rel.SourceID]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, rel.SourceID)
	}
	dst, ok := g.nodes[rel.TargetID]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, rel.TargetID)
	}

	e := Edge{
		SourceID:        rel.SourceID,
		TargetID:        rel.TargetID,
		Type:            rel.Type,
		Confidence:      rel.Confidence,
		Explanation:     rel.Explanation,
		ImpactLevel:     rel.ImpactLevel,
		TemporalGapDays: common.DaysBetween(src.Timestamp, dst.Timestamp),
		DiscoveredAt:    rel.DiscoveredAt,
	}

	adj := g.out[rel.SourceID]
	existing, linked := adj.edges[rel.TargetID]
	if !linked {
		adj.targets = append(adj.targets, rel.TargetID)
		g.in[rel.TargetID][rel.SourceID] = struct{}{}
	}
	for i, old := range existing {
		if old.Type == e.Type {
			existing[i] = e
			return nil
		}
	}
	adj.edges[rel.TargetID] = append(existing, e)
	g.edgeCount++
	return nil
}

func (g *CausationGraph) HasNode(id common.ArticleID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Node returns the display snapshot of id.
func (g *CausationGraph) Node(id common.ArticleID) (common.CausationNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the node IDs in insertion order.
func (g *CausationGraph) Nodes() []common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]common.ArticleID, len(g.order))
	copy(out, g.order)
	return out
}

func (g *CausationGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EdgeCount counts parallel edges separately.
func (g *CausationGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// Successors returns the distinct targets of id in the order they were
// first linked.
func (g *CausationGraph) Successors(id common.ArticleID) []common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.successorsLocked(id)
}

func (g *CausationGraph) successorsLocked(id common.ArticleID) []common.ArticleID {
	adj, ok := g.out[id]
	if !ok {
		return []common.ArticleID{}
	}
	out := make([]common.ArticleID, len(adj.targets))
	copy(out, adj.targets)
	return out
}

// Predecessors returns the distinct sources pointing at id in node order.
func (g *CausationGraph) Predecessors(id common.ArticleID) []common.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.predecessorsLocked(id)
}

func (g *CausationGraph) predecessorsLocked(id common.ArticleID) []common.ArticleID {
	out := make([]common.ArticleID, 0, len(g.in[id]))
	for p := range g.in[id] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return g.index[out[i]] < g.index[out[j]] })
	return out
}

func (g *CausationGraph) InDegree(id common.ArticleID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for p := range g.in[id] {
		n += len(g.out[p].edges[id])
	}
	return n
}

func (g *CausationGraph) OutDegree(id common.ArticleID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	adj, ok := g.out[id]
	if !ok {
		return 0
	}
	n := 0
	for _, es := range adj.edges {
		n += len(es)
	}
	return n
}

// Edges returns every edge from source to target, most confident first.
func (g *CausationGraph) Edges(source, target common.ArticleID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	adj, ok := g.out[source]
	if !ok {
		return []Edge{}
	}
	out := make([]Edge, len(adj.edges[target]))
	copy(out, adj.edges[target])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// BestEdge returns the most confident edge from source to target. Ties go
// to the edge inserted first.
func (g *CausationGraph) BestEdge(source, target common.ArticleID) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bestEdgeLocked(source, target)
}

func (g *CausationGraph) bestEdgeLocked(source, target common.ArticleID) (Edge, bool) {
	adj, ok := g.out[source]
	if !ok {
		return Edge{}, false
	}
	es := adj.edges[target]
	if len(es) == 0 {
		return Edge{}, false
	}
	best := es[0]
	for _, e := range es[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	return best, true
}

// OutEdges returns every edge leaving id, grouped by target in link order.
func (g *CausationGraph) OutEdges(id common.ArticleID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	adj, ok := g.out[id]
	if !ok {
		return []Edge{}
	}
	out := []Edge{}
	for _, t := range adj.targets {
		out = append(out, adj.edges[t]...)
	}
	return out
}

// AllEdges returns every edge, by source node order.
func (g *CausationGraph) AllEdges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allEdgesLocked()
}

func (g *CausationGraph) allEdgesLocked() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, id := range g.order {
		adj := g.out[id]
		for _, t := range adj.targets {
			out = append(out, adj.edges[t]...)
		}
	}
	return out
}

// PathEdges resolves a node sequence to one edge per hop using BestEdge.
// It reports false if any hop is missing.
func (g *CausationGraph) PathEdges(path []common.ArticleID) ([]Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, max(len(path)-1, 0))
	for i := 0; i+1 < len(path); i++ {
		e, ok := g.bestEdgeLocked(path[i], path[i+1])
		if !ok {
			return nil, false
		}
		out = append(out, e)
	}
	return out, true
}

// Snapshot is a serializable copy of the graph.
type Snapshot struct {
	State string                 `json:"state"`
	Nodes []common.CausationNode `json:"nodes"`
	Edges []Edge                 `json:"edges"`
}

func (g *CausationGraph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]common.CausationNode, len(g.order))
	for i, id := range g.order {
		nodes[i] = g.nodes[id]
	}
	return Snapshot{State: g.state.String(), Nodes: nodes, Edges: g.allEdgesLocked()}
}
