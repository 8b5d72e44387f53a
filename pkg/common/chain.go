package common

import (
	"strings"
	"time"
)

// CausationNode is a display snapshot of an article inside a chain. It is
// rebuilt from the article store on every chain build.
type CausationNode struct {
	ArticleID   ArticleID `json:"id"`
	Title       string    `json:"title"`
	Timestamp   time.Time `json:"timestamp"`
	ImpactScore float64   `json:"impact_score"`
	Entities    []string  `json:"entities"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
}

// NodeFromArticle snapshots the display fields of a.
func NodeFromArticle(a Article) CausationNode {
	return CausationNode{
		ArticleID:   a.ID,
		Title:       a.Title,
		Timestamp:   a.Timestamp,
		ImpactScore: a.ImpactScore,
		Entities:    a.Entities,
		Category:    a.Category,
		Tags:        a.Tags,
	}
}

// CausationLink is a relationship snapshot plus the signed temporal gap.
// A negative gap means the effect was reported before its cause.
type CausationLink struct {
	SourceID        ArticleID        `json:"source_id"`
	TargetID        ArticleID        `json:"target_id"`
	Type            RelationshipType `json:"type"`
	Confidence      float64          `json:"confidence"`
	Explanation     string           `json:"explanation"`
	TemporalGapDays float64          `json:"temporal_gap_days"`
}

// CausationChain is a simple path of at least two nodes; Links[i] connects
// Nodes[i] to Nodes[i+1].
type CausationChain struct {
	ID          string          `json:"chain_id"`
	Nodes       []CausationNode `json:"nodes"`
	Links       []CausationLink `json:"links"`
	Pattern     string          `json:"pattern_match,omitempty"`
	TotalImpact float64         `json:"total_impact"`
	Confidence  float64         `json:"confidence"`
	Score       float64         `json:"score"`
	Length      int             `json:"length"`
	Summary     string          `json:"summary"`
}

// NodeIDs returns the article IDs along the chain.
func (c CausationChain) NodeIDs() []ArticleID {
	ids := make([]ArticleID, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ArticleID
	}
	return ids
}

// Key identifies the chain by its node sequence.
func (c CausationChain) Key() string {
	var b strings.Builder
	for i, n := range c.Nodes {
		if i > 0 {
			b.WriteString("\x1f")
		}
		b.WriteString(string(n.ArticleID))
	}
	return b.String()
}

// Summarize renders "STARTS WITH: a → THEN: b → LEADS TO: c".
func (c CausationChain) Summarize() string {
	if len(c.Nodes) == 0 {
		return "Empty chain"
	}
	parts := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		switch {
		case i == 0:
			parts[i] = "STARTS WITH: " + n.Title
		case i == len(c.Nodes)-1:
			parts[i] = "LEADS TO: " + n.Title
		default:
			parts[i] = "THEN: " + n.Title
		}
	}
	return strings.Join(parts, " → ")
}
