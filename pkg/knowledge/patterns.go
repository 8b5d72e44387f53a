package knowledge

import (
	"fmt"
	"math"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

type PatternType string

const (
	CascadePattern  PatternType = "cascade"
	HubPattern      PatternType = "hub"
	FeedbackPattern PatternType = "feedback_loop"

	cascadeMaxHops     = 3
	cascadeMinNodes    = 3
	cascadeMinCount    = 2
	hubDegree          = 5
	feedbackMinNodes   = 2
	feedbackMaxNodes   = 4
	maxFeedbackPattern = 1000

	similarityPerEdge = 0.2
	similarityFloor   = 0.5
)

// Pattern is a recurring structure in the knowledge graph.
type Pattern struct {
	ID        string      `json:"pattern_id"`
	Type      PatternType `json:"pattern_type"`
	Nodes     []string    `json:"nodes"`
	Edges     []string    `json:"edges"`
	Frequency int         `json:"frequency"`
}

// Patterns returns the detected cascades, hubs and feedback loops. The
// result is cached until the graph changes.
func (g *Graph) Patterns() []Pattern {
	g.mu.RLock()
	if !g.dirty {
		out := append([]Pattern(nil), g.patterns...)
		g.mu.RUnlock()
		return out
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dirty {
		var patterns []Pattern
		patterns = append(patterns, g.cascadesLocked()...)
		patterns = append(patterns, g.hubsLocked()...)
		patterns = append(patterns, g.loopsLocked()...)
		if patterns == nil {
			patterns = []Pattern{}
		}
		g.patterns = patterns
		g.dirty = false
		log.Debug("Detected patterns", "count", len(patterns))
	}
	return append([]Pattern(nil), g.patterns...)
}

// PatternMatch is a cascade pattern an event resembles.
type PatternMatch struct {
	Pattern
	Similarity float64 `json:"similarity"`
}

// SimilarPatterns scores every cascade against the outgoing edges of the
// event: 0.2 per edge whose type occurs in the cascade, capped at 1.
// Cascades scoring above 0.5 are returned in detection order.
func (g *Graph) SimilarPatterns(id common.ArticleID) []PatternMatch {
	patterns := g.Patterns()

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []PatternMatch{}
	eventID := EventID(id)
	if _, ok := g.nodes[eventID]; !ok {
		return out
	}
	edges := g.out[eventID]
	for _, p := range patterns {
		if p.Type != CascadePattern {
			continue
		}
		types := make(map[string]struct{}, len(p.Edges))
		for _, t := range p.Edges {
			types[t] = struct{}{}
		}
		score := 0.0
		for _, e := range edges {
			if _, ok := types[e.Type]; ok {
				score += similarityPerEdge
			}
		}
		score = math.Min(score, 1)
		if score > similarityFloor {
			out = append(out, PatternMatch{Pattern: p, Similarity: score})
		}
	}
	return out
}

// cascadesLocked finds edge-type signatures of shortest event to event
// paths of at least three nodes that occur at least twice. Each hop uses
// the first inserted edge.
func (g *Graph) cascadesLocked() []Pattern {
	counts := map[string]int{}
	var sigs [][]string

	for _, src := range g.order {
		if g.nodes[src].Type != EventNode {
			continue
		}
		for _, path := range g.shortestPathsLocked(src, cascadeMaxHops) {
			target := path[len(path)-1]
			if len(path) < cascadeMinNodes || g.nodes[target].Type != EventNode {
				continue
			}
			sig := make([]string, 0, len(path)-1)
			for i := 0; i+1 < len(path); i++ {
				if e, ok := g.firstEdgeLocked(path[i], path[i+1]); ok {
					sig = append(sig, e.Type)
				}
			}
			key := strings.Join(sig, ">")
			if _, ok := counts[key]; !ok {
				sigs = append(sigs, sig)
			}
			counts[key]++
		}
	}

	var out []Pattern
	for _, sig := range sigs {
		n := counts[strings.Join(sig, ">")]
		if n < cascadeMinCount {
			continue
		}
		out = append(out, Pattern{
			ID:        fmt.Sprintf("cascade_%d", len(out)),
			Type:      CascadePattern,
			Nodes:     []string{},
			Edges:     sig,
			Frequency: n,
		})
	}
	return out
}

// shortestPathsLocked returns one shortest path from src to every node
// within maxHops, in breadth-first order.
func (g *Graph) shortestPathsLocked(src string, maxHops int) [][]string {
	var out [][]string
	prev := map[string][]string{src: {src}}
	level := []string{src}
	for hop := 0; hop < maxHops && len(level) > 0; hop++ {
		var next []string
		for _, cur := range level {
			for _, n := range g.successorsLocked(cur) {
				if _, ok := prev[n]; ok {
					continue
				}
				path := append(append(make([]string, 0, len(prev[cur])+1), prev[cur]...), n)
				prev[n] = path
				out = append(out, path)
				next = append(next, n)
			}
		}
		level = next
	}
	return out
}

func (g *Graph) hubsLocked() []Pattern {
	var out []Pattern
	for _, id := range g.order {
		in, outDeg := g.inDegree[id], len(g.out[id])
		if in <= hubDegree && outDeg <= hubDegree {
			continue
		}
		out = append(out, Pattern{
			ID:        "hub_" + id,
			Type:      HubPattern,
			Nodes:     []string{id},
			Edges:     []string{},
			Frequency: max(in, outDeg),
		})
	}
	return out
}

// loopsLocked reports elementary cycles of two to four nodes, each rotated
// to start at its earliest inserted node.
func (g *Graph) loopsLocked() []Pattern {
	var out []Pattern
	var walk func(start string, path []string, onPath map[string]struct{})
	walk = func(start string, path []string, onPath map[string]struct{}) {
		if len(out) >= maxFeedbackPattern {
			return
		}
		last := path[len(path)-1]
		for _, n := range g.successorsLocked(last) {
			if n == start {
				if len(path) >= feedbackMinNodes {
					out = append(out, Pattern{
						ID:        fmt.Sprintf("loop_%d", len(out)),
						Type:      FeedbackPattern,
						Nodes:     append([]string(nil), path...),
						Edges:     []string{},
						Frequency: 1,
					})
				}
				continue
			}
			if g.index[n] < g.index[start] || len(path) >= feedbackMaxNodes {
				continue
			}
			if _, ok := onPath[n]; ok {
				continue
			}
			onPath[n] = struct{}{}
			walk(start, append(path, n), onPath)
			delete(onPath, n)
		}
	}
	for _, id := range g.order {
		if g.nodes[id].Type != EventNode {
			continue
		}
		walk(id, []string{id}, map[string]struct{}{id: {}})
	}
	return out
}
