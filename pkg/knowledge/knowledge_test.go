package knowledge

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"

	"github.com/google/go-cmp/cmp"
)

func art(id, title, category string, entities ...string) common.Article {
	return common.Article{
		ID:          common.ArticleID(id),
		Title:       title,
		Category:    category,
		Entities:    entities,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ImpactScore: 5,
	}
}

func causal(src, dst string, typ common.RelationshipType) graph.Edge {
	return graph.Edge{
		SourceID:    common.ArticleID(src),
		TargetID:    common.ArticleID(dst),
		Type:        typ,
		Confidence:  0.8,
		Explanation: src + " drives " + dst,
	}
}

func TestBuild_NodesAndEdges(t *testing.T) {
	g := Build(
		[]common.Article{
			art("1", "Tesla cuts prices", "Automotive", "Tesla", "Elon Musk"),
			art("2", "BYD responds", "Automotive", "BYD", "Tesla"),
		},
		[]graph.Edge{
			causal("1", "2", common.TriggersRetaliation),
			causal("1", "2", common.ShiftsCompetition),
			causal("1", "missing", common.Causes),
		},
	)

	if _, ok := g.Node("entity_elon_musk"); !ok {
		t.Fatalf("entity node not created")
	}
	cat, ok := g.Node("concept_category_automotive")
	if !ok || cat.Label != "Category: Automotive" {
		t.Fatalf("category node = %+v", cat)
	}

	s := g.Statistics()
	want := Stats{
		TotalNodes: 6,
		// 4 MENTIONED_IN, 2 BELONGS_TO, 2 causal
		TotalEdges: 8,
		NodeTypes:  map[string]int{"event": 2, "entity": 3, "concept": 1},
		EdgeTypes: map[string]int{
			MentionedIn: 4, BelongsTo: 2,
			string(common.TriggersRetaliation): 1, string(common.ShiftsCompetition): 1,
		},
		PatternsDetected: 0,
		AvgDegree:        2 * 8.0 / 6,
		Density:          8.0 / 30,
		Components:       1,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStatistics_ZeroEdgesAndEmpty(t *testing.T) {
	s := New().Statistics()
	if s.TotalNodes != 0 || s.NodeTypes == nil || s.EdgeTypes == nil || s.Density != 0 || s.AvgDegree != 0 {
		t.Fatalf("empty stats = %+v", s)
	}

	g := Build([]common.Article{art("1", "a", "Energy"), art("2", "b", "Finance")}, nil)
	s = g.Statistics()
	if s.Components != 2 || s.TotalEdges != 2 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestPatterns(t *testing.T) {
	var articles []common.Article
	for i := range 8 {
		articles = append(articles, art(fmt.Sprint(i), fmt.Sprintf("Event %d", i), "Energy"))
	}
	g := Build(articles, []graph.Edge{
		causal("0", "1", common.Causes),
		causal("1", "2", common.ImpactsFinance),
		causal("3", "4", common.Causes),
		causal("4", "5", common.ImpactsFinance),
		causal("6", "7", common.Causes),
		causal("7", "6", common.ReversesTrend),
	})

	var cascades, hubs, loops []Pattern
	for _, p := range g.Patterns() {
		switch p.Type {
		case CascadePattern:
			cascades = append(cascades, p)
		case HubPattern:
			hubs = append(hubs, p)
		case FeedbackPattern:
			loops = append(loops, p)
		}
	}

	if len(cascades) != 1 || cascades[0].Frequency != 2 {
		t.Fatalf("cascades = %+v", cascades)
	}
	if diff := cmp.Diff([]string{"CAUSES", "IMPACTS_FINANCE"}, cascades[0].Edges); diff != "" {
		t.Fatalf("cascade signature mismatch (-want +got):\n%s", diff)
	}
	if len(hubs) != 1 || hubs[0].ID != "hub_concept_category_energy" || hubs[0].Frequency != 8 {
		t.Fatalf("hubs = %+v", hubs)
	}
	if len(loops) != 1 || !cmp.Equal(loops[0].Nodes, []string{"event_6", "event_7"}) {
		t.Fatalf("loops = %+v", loops)
	}
	if got := g.Statistics().PatternsDetected; got != 3 {
		t.Fatalf("PatternsDetected = %d, want 3", got)
	}

	// New edges invalidate the cached patterns.
	if err := g.AddCausalEdge(causal("2", "0", common.AmplifiesTrend)); err != nil {
		t.Fatalf("AddCausalEdge: %v", err)
	}
	if got := g.Statistics().PatternsDetected; got <= 3 {
		t.Fatalf("patterns not recomputed, got %d", got)
	}
}

func TestQueryImpactPath(t *testing.T) {
	g := Build(
		[]common.Article{
			art("1", "OPEC cuts output", "Energy"),
			art("2", "Oil prices spike", "Energy"),
			art("3", "Airline fares rise", "Transportation"),
			art("4", "Tourism slows", "Hospitality"),
		},
		[]graph.Edge{
			causal("1", "2", common.Causes),
			causal("2", "3", common.ImpactsFinance),
			causal("1", "3", common.DisruptsSupplyChain),
		},
	)

	paths := g.QueryImpactPath("opec", "AIRLINE", 0)
	var got [][]string
	for _, p := range paths {
		var ids []string
		for _, n := range p {
			ids = append(ids, n.NodeID)
		}
		got = append(got, ids)
	}
	want := [][]string{
		{"event_1", "event_2", "event_3"},
		{"event_1", "event_3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	first := paths[0]
	if first[0].EdgeToNext == nil || first[0].EdgeToNext.Type != "CAUSES" || math.Abs(first[0].EdgeToNext.Weight-0.8) > 1e-9 {
		t.Fatalf("edge to next = %+v", first[0].EdgeToNext)
	}
	if first[2].EdgeToNext != nil {
		t.Fatalf("last node should have no outgoing edge")
	}

	if got := g.QueryImpactPath("opec", "tourism", 5); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result for unconnected events, got %v", got)
	}
	if got := g.QueryImpactPath("volcano", "tourism", 5); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result for unknown query, got %v", got)
	}
}

func TestSimilarPatterns(t *testing.T) {
	var articles []common.Article
	for i := range 11 {
		articles = append(articles, art(fmt.Sprint(i), fmt.Sprintf("Event %d", i), "Energy"))
	}
	g := Build(articles, []graph.Edge{
		causal("0", "1", common.Causes),
		causal("1", "2", common.ImpactsFinance),
		causal("3", "4", common.Causes),
		causal("4", "5", common.ImpactsFinance),
		// three edges sharing the cascade's types
		causal("8", "1", common.Causes),
		causal("8", "4", common.Causes),
		causal("8", "2", common.ImpactsFinance),
		// two matching edges stay at 0.4
		causal("9", "6", common.Causes),
		causal("9", "7", common.ImpactsFinance),
		causal("10", "6", common.ReversesTrend),
	})

	tests := []struct {
		name string
		id   common.ArticleID
		want []float64
	}{
		{name: "three matching edges", id: "8", want: []float64{0.6}},
		{name: "two matching edges", id: "9", want: nil},
		{name: "single edge", id: "0", want: nil},
		{name: "unrelated edge type", id: "10", want: nil},
		{name: "unknown event", id: "missing", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := g.SimilarPatterns(tc.id)
			if got == nil {
				t.Fatal("expected non-nil result")
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d matches, want %d: %+v", len(got), len(tc.want), got)
			}
			for i, m := range got {
				if m.Type != CascadePattern || math.Abs(m.Similarity-tc.want[i]) > 1e-9 {
					t.Fatalf("match %d = %+v, want similarity %v", i, m, tc.want[i])
				}
			}
		})
	}
}
