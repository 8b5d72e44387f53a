/*
Package knowledge holds the knowledge graph: events, the entities they
mention and the categories they belong to, joined by causal edges.

Event nodes are named event_<id>, entity nodes entity_<name> with the name
lowercased and spaces replaced by underscores, and category concepts
concept_category_<category>. Entities point at events with MENTIONED_IN
edges and events point at their category with BELONGS_TO edges.
*/
package knowledge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
)

var log = logger.Component("Knowledge")

type NodeType string

const (
	EventNode   NodeType = "event"
	EntityNode  NodeType = "entity"
	ConceptNode NodeType = "concept"
)

const (
	MentionedIn = "MENTIONED_IN"
	BelongsTo   = "BELONGS_TO"

	labelLimit   = 50
	previewLimit = 200
)

type Node struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

type Edge struct {
	Source      string             `json:"source"`
	Target      string             `json:"target"`
	Type        string             `json:"type"`
	Weight      float64            `json:"weight"`
	Explanation string             `json:"explanation,omitempty"`
	ImpactLevel common.ImpactLevel `json:"impact_level,omitempty"`
}

func EventID(id common.ArticleID) string {
	return "event_" + string(id)
}

func EntityID(name string) string {
	return "entity_" + strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func CategoryID(category string) string {
	return "concept_category_" + strings.ToLower(category)
}

// Graph is a directed multigraph keyed by edge type. It is safe for
// concurrent use.
type Graph struct {
	mu sync.RWMutex

	order []string
	index map[string]int
	nodes map[string]Node
	// out holds edges per source, in insertion order.
	out      map[string][]Edge
	inDegree map[string]int
	edges    int

	patterns []Pattern
	dirty    bool
}

func New() *Graph {
	return &Graph{
		index:    make(map[string]int),
		nodes:    make(map[string]Node),
		out:      make(map[string][]Edge),
		inDegree: make(map[string]int),
		dirty:    true,
	}
}

// Build creates the knowledge graph for articles and the causal edges
// between them.
func Build(articles []common.Article, causal []graph.Edge) *Graph {
	g := New()
	for _, a := range articles {
		g.AddEvent(a)
	}
	for _, e := range causal {
		if err := g.AddCausalEdge(e); err != nil {
			log.Warn("Skipping causal edge", "err", err)
		}
	}
	log.Info("Built knowledge graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g
}

// AddEvent adds the event node of a together with its entity and category
// nodes. Adding an event twice is a no-op.
func (g *Graph) AddEvent(a common.Article) {
	g.mu.Lock()
	defer g.mu.Unlock()

	eventID := EventID(a.ID)
	if _, ok := g.nodes[eventID]; ok {
		return
	}

	label := a.Title
	if len([]rune(label)) > labelLimit {
		label = string([]rune(label)[:labelLimit]) + "..."
	}
	preview := a.Content
	if len([]rune(preview)) > previewLimit {
		preview = string([]rune(preview)[:previewLimit])
	}
	g.addNodeLocked(Node{
		ID:    eventID,
		Type:  EventNode,
		Label: label,
		Properties: map[string]any{
			"full_title":      a.Title,
			"timestamp":       a.Timestamp,
			"category":        a.Category,
			"impact_score":    a.ImpactScore,
			"sentiment":       a.Sentiment,
			"source":          a.Source,
			"content_preview": preview,
		},
	})

	for _, name := range a.Entities {
		id := EntityID(name)
		g.addNodeLocked(Node{
			ID:         id,
			Type:       EntityNode,
			Label:      name,
			Properties: map[string]any{"entity_type": "organization"},
		})
		g.addEdgeLocked(Edge{Source: id, Target: eventID, Type: MentionedIn, Weight: 1})
	}

	category := a.Category
	if category == "" {
		category = common.UnknownCategory
	}
	catID := CategoryID(category)
	g.addNodeLocked(Node{
		ID:         catID,
		Type:       ConceptNode,
		Label:      "Category: " + category,
		Properties: map[string]any{"concept_type": "category"},
	})
	g.addEdgeLocked(Edge{Source: eventID, Target: catID, Type: BelongsTo, Weight: 1})
}

// AddCausalEdge links two event nodes with an edge keyed by the
// relationship type. An edge of the same type is replaced.
func (g *Graph) AddCausalEdge(e graph.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, dst := EventID(e.SourceID), EventID(e.TargetID)
	if _, ok := g.nodes[src]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, e.SourceID)
	}
	if _, ok := g.nodes[dst]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, e.TargetID)
	}
	g.addEdgeLocked(Edge{
		Source:      src,
		Target:      dst,
		Type:        string(e.Type),
		Weight:      e.Confidence,
		Explanation: e.Explanation,
		ImpactLevel: e.ImpactLevel,
	})
	return nil
}

func (g *Graph) addNodeLocked(n Node) {
	if _, ok := g.nodes[n.ID]; ok {
		return
	}
	g.index[n.ID] = len(g.order)
	g.order = append(g.order, n.ID)
	g.nodes[n.ID] = n
	g.dirty = true
}

func (g *Graph) addEdgeLocked(e Edge) {
	edges := g.out[e.Source]
	for i, old := range edges {
		if old.Target == e.Target && old.Type == e.Type {
			edges[i] = e
			return
		}
	}
	g.out[e.Source] = append(edges, e)
	g.inDegree[e.Target]++
	g.edges++
	g.dirty = true
}

func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// successorsLocked returns the distinct targets of id in first-edge order.
func (g *Graph) successorsLocked(id string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, e := range g.out[id] {
		if _, ok := seen[e.Target]; ok {
			continue
		}
		seen[e.Target] = struct{}{}
		out = append(out, e.Target)
	}
	return out
}

// firstEdgeLocked returns the first inserted edge from source to target.
func (g *Graph) firstEdgeLocked(source, target string) (Edge, bool) {
	for _, e := range g.out[source] {
		if e.Target == target {
			return e, true
		}
	}
	return Edge{}, false
}

// Stats summarizes the knowledge graph.
type Stats struct {
	TotalNodes       int            `json:"total_nodes"`
	TotalEdges       int            `json:"total_edges"`
	NodeTypes        map[string]int `json:"node_types"`
	EdgeTypes        map[string]int `json:"edge_types"`
	PatternsDetected int            `json:"patterns_detected"`
	AvgDegree        float64        `json:"avg_degree"`
	Density          float64        `json:"density"`
	Components       int            `json:"components"`
}

// Statistics counts nodes and edges by type, the mean total degree, the
// directed density and the number of weakly connected components.
func (g *Graph) Statistics() Stats {
	patterns := g.Patterns()

	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		TotalNodes:       len(g.order),
		TotalEdges:       g.edges,
		NodeTypes:        map[string]int{},
		EdgeTypes:        map[string]int{},
		PatternsDetected: len(patterns),
	}
	for _, id := range g.order {
		s.NodeTypes[string(g.nodes[id].Type)]++
		for _, e := range g.out[id] {
			s.EdgeTypes[e.Type]++
		}
	}
	n := float64(len(g.order))
	if n > 0 {
		s.AvgDegree = 2 * float64(g.edges) / n
	}
	if n > 1 {
		s.Density = float64(g.edges) / (n * (n - 1))
	}
	s.Components = g.weakComponentsLocked()
	return s
}

func (g *Graph) weakComponentsLocked() int {
	parent := make([]int, len(g.order))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	components := len(g.order)
	for _, src := range g.order {
		for _, e := range g.out[src] {
			a, b := find(g.index[src]), find(g.index[e.Target])
			if a != b {
				parent[a] = b
				components--
			}
		}
	}
	return components
}
