package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ArticleID identifies an article. Corpora use integers or strings; both
// decode into the same string form.
type ArticleID string

func (id *ArticleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ArticleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("article id must be a string or number: %w", err)
	}
	*id = ArticleID(n.String())
	return nil
}

func (id ArticleID) String() string {
	return string(id)
}

// Sentiment is the editorial tone of an article.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Article is a single news item. It is immutable once ingested except for
// the embedding, which is attached lazily and always L2-normalized.
type Article struct {
	ID          ArticleID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Entities    []string  `json:"entities"`
	Tags        []string  `json:"tags"`
	Sentiment   Sentiment `json:"sentiment"`
	ImpactScore float64   `json:"impact_score"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without zone. Values
// without zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}

func (a *Article) UnmarshalJSON(data []byte) error {
	type alias Article
	aux := struct {
		*alias
		Timestamp   string          `json:"timestamp"`
		ImpactScore json.RawMessage `json:"impact_score"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timestamp != "" {
		ts, err := ParseTimestamp(aux.Timestamp)
		if err != nil {
			return fmt.Errorf("article %s: %w", a.ID, err)
		}
		a.Timestamp = ts
	}

	a.ImpactScore = DefaultImpactScore
	if len(aux.ImpactScore) > 0 && string(aux.ImpactScore) != "null" {
		raw := strings.Trim(string(aux.ImpactScore), `"`)
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("article %s: invalid impact_score: %w", a.ID, err)
		}
		a.ImpactScore = score
	}
	if a.Category == "" {
		a.Category = UnknownCategory
	}
	if a.Sentiment == "" {
		a.Sentiment = SentimentNeutral
	}
	a.Entities = DedupeStrings(a.Entities)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return nil
}

// DaysBetween returns the signed whole days from a to b, floored, so a
// target twelve hours before its source is -1 day.
func DaysBetween(a, b time.Time) float64 {
	return math.Floor(b.Sub(a).Hours() / 24)
}

// Relationship is a directed, typed, confidence-scored edge between two
// articles as produced by the causal classifier and validated on ingest.
//
// Several relationships of different types may exist between the same
// ordered pair of articles.
type Relationship struct {
	SourceID     ArticleID        `json:"source_id"`
	TargetID     ArticleID        `json:"target_id"`
	Type         RelationshipType `json:"relationship_type"`
	Confidence   float64          `json:"confidence"`
	Explanation  string           `json:"explanation"`
	ImpactLevel  ImpactLevel      `json:"impact_level"`
	DiscoveredAt time.Time        `json:"discovered_at"`
}

// DedupeStrings removes duplicates and empty strings while keeping the
// first-seen order. A nil input yields an empty slice.
func DedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
