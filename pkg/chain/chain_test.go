package chain

import (
	"errors"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/graph"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func art(id, title string, days, impact float64) common.Article {
	return common.Article{
		ID:          common.ArticleID(id),
		Title:       title,
		Timestamp:   t0.Add(time.Duration(days * 24 * float64(time.Hour))),
		ImpactScore: impact,
		Category:    "Finance",
		Entities:    []string{},
		Tags:        []string{},
	}
}

func rel(src, dst string, conf float64) common.Relationship {
	return common.Relationship{
		SourceID:    common.ArticleID(src),
		TargetID:    common.ArticleID(dst),
		Type:        common.Causes,
		Confidence:  conf,
		ImpactLevel: common.Primary,
	}
}

func ids(s ...string) []common.ArticleID {
	out := make([]common.ArticleID, len(s))
	for i, v := range s {
		out[i] = common.ArticleID(v)
	}
	return out
}

func newBuilder(t *testing.T, articles []common.Article, rels ...common.Relationship) *Builder {
	t.Helper()
	s, err := store.NewArticleStore(articles)
	if err != nil {
		t.Fatalf("NewArticleStore: %v", err)
	}
	g := graph.NewCausationGraph(graph.NewGraphParams{})
	for _, a := range articles {
		g.AddNode(a)
	}
	for _, r := range rels {
		if err := g.AddRelationship(r); err != nil {
			t.Fatalf("AddRelationship: %v", err)
		}
	}
	return NewBuilder(g, s, DefaultConfig())
}

func keys(chains []common.CausationChain) [][]common.ArticleID {
	out := make([][]common.ArticleID, len(chains))
	for i, c := range chains {
		out[i] = c.NodeIDs()
	}
	return out
}

func TestBuildCausationChain_ThreeNodeChain(t *testing.T) {
	b := newBuilder(t,
		[]common.Article{
			art("A", "Ford stock drop", 0, 5),
			art("B", "Mexican peso decline", 1, 5),
			art("C", "Import prices rise", 3, 5),
		},
		rel("A", "B", 0.9),
		rel("B", "C", 0.8),
	)

	chains := b.BuildCausationChain("Ford stock drop", 0)
	if diff := cmp.Diff([][]common.ArticleID{ids("A", "B", "C"), ids("A", "B")}, keys(chains)); diff != "" {
		t.Fatalf("chains mismatch (-want +got):\n%s", diff)
	}

	top := chains[0]
	if d := top.Confidence - 0.85; d > 1e-9 || d < -1e-9 {
		t.Fatalf("confidence = %v, want 0.85", top.Confidence)
	}
	if top.TotalImpact != 15 || top.Length != 3 {
		t.Fatalf("total impact %v length %d", top.TotalImpact, top.Length)
	}
	if top.ID == "" {
		t.Fatalf("chain id not set")
	}
	want := "STARTS WITH: Ford stock drop → THEN: Mexican peso decline → LEADS TO: Import prices rise"
	if top.Summary != want {
		t.Fatalf("summary = %q", top.Summary)
	}
	for _, c := range chains {
		if len(c.Nodes) != len(c.Links)+1 || len(c.Nodes) < 2 {
			t.Fatalf("invalid chain %v: %d nodes %d links", c.NodeIDs(), len(c.Nodes), len(c.Links))
		}
	}
}

func TestBuildCausationChain_NoMatch(t *testing.T) {
	b := newBuilder(t, []common.Article{art("A", "Ford stock drop", 0, 5)})
	chains := b.BuildCausationChain("volcano", 3)
	if chains == nil || len(chains) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", chains)
	}
}

func TestTrace_PerBranchVisited(t *testing.T) {
	b := newBuilder(t,
		[]common.Article{
			art("A", "a", 0, 5), art("B", "b", 1, 5),
			art("C", "c", 1, 5), art("D", "d", 2, 5),
		},
		rel("A", "B", 0.9), rel("A", "C", 0.9),
		rel("B", "D", 0.9), rel("C", "D", 0.9),
		rel("D", "A", 0.9),
	)

	got := b.trace("A", 5)
	want := [][]common.ArticleID{
		ids("A", "B", "D"), ids("A", "B"),
		ids("A", "C", "D"), ids("A", "C"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestTrace_DepthBound(t *testing.T) {
	b := newBuilder(t,
		[]common.Article{
			art("A", "a", 0, 5), art("B", "b", 1, 5),
			art("C", "c", 2, 5), art("D", "d", 3, 5),
		},
		rel("A", "B", 0.9), rel("B", "C", 0.9), rel("C", "D", 0.9),
	)

	got := b.trace("A", 2)
	if diff := cmp.Diff([][]common.ArticleID{ids("A", "B", "C"), ids("A", "B")}, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCausationChain_NoDuplicates(t *testing.T) {
	// Both A and B match the query; B's chains are a suffix of A's but
	// distinct sequences, and the same start never yields a sequence twice.
	b := newBuilder(t,
		[]common.Article{
			art("A", "Oil crisis begins", 0, 5),
			art("B", "Oil crisis spreads", 1, 5),
			art("C", "Airline fares climb", 2, 5),
		},
		rel("A", "B", 0.9), rel("B", "C", 0.7), rel("A", "C", 0.6),
	)

	for run := 0; run < 2; run++ {
		seen := map[string]bool{}
		for _, c := range b.BuildCausationChain("oil crisis", 5) {
			if seen[c.Key()] {
				t.Fatalf("duplicate chain %v", c.NodeIDs())
			}
			seen[c.Key()] = true
		}
	}
}

func TestDedupe(t *testing.T) {
	mk := func(id string, path ...string) common.CausationChain {
		c := common.CausationChain{ID: id}
		for _, p := range path {
			c.Nodes = append(c.Nodes, common.CausationNode{ArticleID: common.ArticleID(p)})
		}
		return c
	}
	got := Dedupe([]common.CausationChain{mk("1", "A", "B"), mk("2", "A", "B", "C"), mk("3", "A", "B")})
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected dedupe result %+v", got)
	}
}

func TestFindRelevant_Scoring(t *testing.T) {
	a := art("A", "Tesla recalls vehicles", 0, 5)
	a.Entities = []string{"Tesla", "Tesla Motors"}
	b2 := art("B", "EV market update", 0, 5)
	b2.Content = "Analysts discuss tesla and rivals."
	c := art("C", "Unrelated", 0, 5)

	b := newBuilder(t, []common.Article{c, b2, a})
	got := b.FindRelevant("TESLA")
	if len(got) != 2 {
		t.Fatalf("got %d relevant articles", len(got))
	}
	if got[0].Article.ID != "A" || got[0].Score != 5 {
		t.Fatalf("first = %s %.1f, want A 5.0", got[0].Article.ID, got[0].Score)
	}
	if got[1].Article.ID != "B" || got[1].Score != 1 {
		t.Fatalf("second = %s %.1f, want B 1.0", got[1].Article.ID, got[1].Score)
	}
}

func TestScore_TemporalPenalty(t *testing.T) {
	c := common.CausationChain{
		Nodes: []common.CausationNode{{ImpactScore: 6}, {ImpactScore: 6}, {ImpactScore: 6}},
		Links: []common.CausationLink{
			{Confidence: 0.8, TemporalGapDays: -1},
			{Confidence: 0.8, TemporalGapDays: 2},
		},
		TotalImpact: 18,
		Confidence:  0.8,
	}
	if got := TemporalCoherence(c); got != 0.8 {
		t.Fatalf("coherence = %v", got)
	}
	want := 0.4*6 + 0.3*0.8 + 0.2*1 + 0.1*0.8
	if got := Score(c); got-want > 1e-9 || want-got > 1e-9 {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestRank_TieBreakOnSequence(t *testing.T) {
	mk := func(score float64, path ...string) common.CausationChain {
		c := common.CausationChain{Score: score}
		for _, p := range path {
			c.Nodes = append(c.Nodes, common.CausationNode{ArticleID: common.ArticleID(p)})
		}
		return c
	}
	chains := []common.CausationChain{mk(1, "B", "C"), mk(2, "Z", "Y"), mk(1, "A", "C")}
	Rank(chains)
	want := [][]common.ArticleID{ids("Z", "Y"), ids("A", "C"), ids("B", "C")}
	if diff := cmp.Diff(want, keys(chains)); diff != "" {
		t.Fatalf("rank mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchPattern_Boundary(t *testing.T) {
	nodes := func(titles ...string) common.CausationChain {
		c := common.CausationChain{}
		for _, title := range titles {
			c.Nodes = append(c.Nodes, common.CausationNode{Title: title})
		}
		return c
	}

	tests := []struct {
		name  string
		chain common.CausationChain
		want  string
	}{
		{"two of four", nodes("New tariff announced", "Retaliation follows"), ""},
		{"three of four", nodes("New tariff announced", "Retaliation follows", "Export opportunity"), "Trade War Cascade"},
		{"tags count", common.CausationChain{Nodes: []common.CausationNode{
			{Title: "Port closed", Tags: []string{"Disruption", "shortage"}},
			{Title: "Buyers turn to substitution"},
		}}, "Supply Shock"},
		{"nothing", nodes("Weather report"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPattern(tt.chain, common.DefaultPatterns, 0.5); got != tt.want {
				t.Fatalf("MatchPattern = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCauses(t *testing.T) {
	b := newBuilder(t,
		[]common.Article{
			art("R", "Drought", 0, 3),
			art("X", "Crop failure", 5, 9),
			art("Y", "Grain prices", 8, 5),
			art("T", "Bread shortage", 10, 6),
		},
		rel("R", "X", 0.9), rel("X", "Y", 0.8), rel("Y", "T", 0.7),
	)

	got, err := b.RootCauses("T")
	if err != nil {
		t.Fatalf("RootCauses: %v", err)
	}
	var paths [][]common.ArticleID
	for _, rc := range got {
		paths = append(paths, rc.Chain.NodeIDs())
	}
	want := [][]common.ArticleID{ids("X", "Y", "T"), ids("R", "X", "Y", "T")}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("root paths mismatch (-want +got):\n%s", diff)
	}
	if got[0].PathSummary == "" {
		t.Fatalf("missing path summary")
	}

	if _, err := b.RootCauses("missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackLoops(t *testing.T) {
	b := newBuilder(t,
		[]common.Article{art("A", "Rates rise", 0, 5), art("B", "Inflation cools", 20, 5)},
		rel("A", "B", 0.9), rel("B", "A", 0.7),
	)

	loops := b.FeedbackLoops()
	if len(loops) != 1 {
		t.Fatalf("got %d loops", len(loops))
	}
	if want := "Rates rise → Inflation cools → (back to start)"; loops[0].Description != want {
		t.Fatalf("description = %q", loops[0].Description)
	}
	if diff := cmp.Diff(ids("A", "B"), loops[0].Cycle); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
}
