/*
Package ripple traces how an event spreads through the causation graph and
forecasts its likely future effects.

The propagator walks successors breadth first and labels every reached
article with the tier of its first discovery: PRIMARY at one hop,
SECONDARY at two, TERTIARY at three and QUATERNARY beyond. A pattern
database of historical (category, relationship type) effects feeds the
predictor and the timeline estimator.
*/
package ripple

import (
	"fmt"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
)

var log = logger.Component("Ripple")

const DefaultMaxHops = 3

// Graph is the part of the causation graph the propagator reads.
type Graph interface {
	HasNode(id common.ArticleID) bool
	Successors(id common.ArticleID) []common.ArticleID
	BestEdge(source, target common.ArticleID) (graph.Edge, bool)
}

type Articles interface {
	Get(id common.ArticleID) (common.Article, error)
	All() []common.Article
}

// Effect is an article reached from the source event.
type Effect struct {
	Article           common.Article `json:"article"`
	Relationship      graph.Edge     `json:"relationship"`
	HopDistance       int            `json:"hop_distance"`
	ImpactPropagation float64        `json:"impact_propagation"`
}

// IndustryImpact is an effect as listed under its category.
type IndustryImpact struct {
	ArticleID    common.ArticleID   `json:"article_id"`
	Title        string             `json:"title"`
	ImpactLevel  common.ImpactLevel `json:"impact_level"`
	Relationship graph.Edge         `json:"relationship"`
}

// Report groups the effects of one event by tier and by category.
type Report struct {
	SourceID      common.ArticleID            `json:"source_id"`
	Primary       []Effect                    `json:"PRIMARY"`
	Secondary     []Effect                    `json:"SECONDARY"`
	Tertiary      []Effect                    `json:"TERTIARY"`
	Quaternary    []Effect                    `json:"QUATERNARY"`
	CrossIndustry map[string][]IndustryImpact `json:"cross_industry_impacts"`
}

func newReport(id common.ArticleID) Report {
	return Report{
		SourceID:      id,
		Primary:       []Effect{},
		Secondary:     []Effect{},
		Tertiary:      []Effect{},
		Quaternary:    []Effect{},
		CrossIndustry: map[string][]IndustryImpact{},
	}
}

// Level returns the effects of tier l.
func (r Report) Level(l common.ImpactLevel) []Effect {
	switch l {
	case common.Primary:
		return r.Primary
	case common.Secondary:
		return r.Secondary
	case common.Tertiary:
		return r.Tertiary
	case common.Quaternary:
		return r.Quaternary
	}
	return nil
}

func (r *Report) add(l common.ImpactLevel, e Effect) {
	switch l {
	case common.Primary:
		r.Primary = append(r.Primary, e)
	case common.Secondary:
		r.Secondary = append(r.Secondary, e)
	case common.Tertiary:
		r.Tertiary = append(r.Tertiary, e)
	default:
		r.Quaternary = append(r.Quaternary, e)
	}
}

// Effects returns every effect, nearest tier first.
func (r Report) Effects() []Effect {
	out := make([]Effect, 0, len(r.Primary)+len(r.Secondary)+len(r.Tertiary)+len(r.Quaternary))
	for _, info := range common.ImpactLevels {
		out = append(out, r.Level(info.Level)...)
	}
	return out
}

// Categories lists the categories touched by the report in tier order.
func (r Report) Categories() []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, e := range r.Effects() {
		if _, ok := seen[e.Article.Category]; ok {
			continue
		}
		seen[e.Article.Category] = struct{}{}
		out = append(out, e.Article.Category)
	}
	return out
}

type Propagator struct {
	graph    Graph
	articles Articles
}

func NewPropagator(g Graph, articles Articles) *Propagator {
	return &Propagator{graph: g, articles: articles}
}

// Track expands the successors of id for up to maxHops hops. Every article
// is recorded once, at the hop where it is first reached. maxHops <= 0
// uses DefaultMaxHops.
func (p *Propagator) Track(id common.ArticleID, maxHops int) (Report, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	if _, err := p.articles.Get(id); err != nil {
		return Report{}, fmt.Errorf("ripple effects of %s: %w", id, err)
	}

	report := newReport(id)
	if !p.graph.HasNode(id) {
		return report, nil
	}

	visited := map[common.ArticleID]struct{}{id: {}}
	current := []common.ArticleID{id}
	for hop := 1; hop <= maxHops && len(current) > 0; hop++ {
		level := common.LevelForHop(hop)
		var next []common.ArticleID
		for _, cur := range current {
			for _, succ := range p.graph.Successors(cur) {
				if _, ok := visited[succ]; ok {
					continue
				}
				visited[succ] = struct{}{}

				a, err := p.articles.Get(succ)
				if err != nil {
					log.Warn("Graph node missing from store", "id", succ)
					continue
				}
				edge, _ := p.graph.BestEdge(cur, succ)
				a.Embedding = nil
				report.add(level, Effect{
					Article:           a,
					Relationship:      edge,
					HopDistance:       hop,
					ImpactPropagation: level.PropagationFactor(),
				})
				next = append(next, succ)
			}
		}
		current = next
	}

	for _, info := range common.ImpactLevels {
		for _, e := range report.Level(info.Level) {
			report.CrossIndustry[e.Article.Category] = append(report.CrossIndustry[e.Article.Category], IndustryImpact{
				ArticleID:    e.Article.ID,
				Title:        e.Article.Title,
				ImpactLevel:  info.Level,
				Relationship: e.Relationship,
			})
		}
	}
	return report, nil
}
