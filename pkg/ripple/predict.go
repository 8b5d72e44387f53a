package ripple

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var plog = logger.Component("Predict")

const (
	DefaultHorizonDays = 90

	similarityThreshold = 0.5
	maxSimilar          = 10
	maxPrecedents       = 3
	maxPredictions      = 10
	precedentChainDepth = 3
	maxConfidence       = 0.95
	nearTermDays        = 30
)

// ChainBuilder builds ranked causation chains for a query.
type ChainBuilder interface {
	BuildCausationChain(query string, maxDepth int) []common.CausationChain
}

type EventRef struct {
	ID    common.ArticleID `json:"id"`
	Title string           `json:"title"`
}

type Prediction struct {
	ID                     string                  `json:"prediction_id"`
	SourceEvent            EventRef                `json:"source_event"`
	PredictedImpact        string                  `json:"predicted_impact"`
	AffectedIndustries     []string                `json:"affected_industries"`
	AffectedEntities       []string                `json:"affected_entities"`
	ImpactType             common.RelationshipType `json:"impact_type"`
	Confidence             float64                 `json:"confidence"`
	EstimatedTimeframeDays Timeframe               `json:"estimated_timeframe_days"`
	Reasoning              string                  `json:"reasoning"`
	HistoricalPrecedents   []common.Article        `json:"historical_precedents"`
	PrecedentCount         int                     `json:"precedent_count"`
}

// Similar is a past article resembling an event.
type Similar struct {
	Article    common.Article `json:"article"`
	Similarity float64        `json:"similarity"`
}

// NameCount is a counted label.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EffectCount is a (category, relationship type) effect seen after similar
// events, with the temporal gaps at which it appeared.
type EffectCount struct {
	Category string                  `json:"category"`
	Type     common.RelationshipType `json:"relationship_type"`
	Count    int                     `json:"count"`
	Gaps     []float64               `json:"gaps"`
}

// PatternSummary aggregates the chains of similar events. Every list is
// ordered by count, first seen first on ties.
type PatternSummary struct {
	CommonEffects      []EffectCount `json:"common_effects"`
	AffectedIndustries []NameCount   `json:"affected_industries"`
	RelationshipTypes  []NameCount   `json:"relationship_types"`
}

type Predictor struct {
	articles   Articles
	chains     ChainBuilder
	propagator *Propagator
	patterns   *PatternDB
	forecaster Forecaster
	fallback   Forecaster
	timeline   TimelineEstimator
	indicators IndicatorFinder
}

type PredictorOption func(*Predictor)

// WithForecaster sets the primary forecaster. The historical forecaster
// stays as fallback.
func WithForecaster(f Forecaster) PredictorOption {
	return func(p *Predictor) {
		p.forecaster = f
	}
}

func WithTimelineEstimator(t TimelineEstimator) PredictorOption {
	return func(p *Predictor) {
		p.timeline = t
	}
}

func WithIndicatorFinder(f IndicatorFinder) PredictorOption {
	return func(p *Predictor) {
		p.indicators = f
	}
}

func NewPredictor(
	articles Articles,
	chains ChainBuilder,
	propagator *Propagator,
	patterns *PatternDB,
	opts ...PredictorOption,
) *Predictor {
	p := &Predictor{
		articles:   articles,
		chains:     chains,
		propagator: propagator,
		patterns:   patterns,
		fallback:   HistoricalForecaster{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindEvent resolves a free-text event description to the article that
// matches it best: 2 points when the title contains the text and 1 when the
// body does, case-insensitively. The first article wins ties.
func (p *Predictor) FindEvent(description string) (common.Article, bool) {
	q := strings.ToLower(strings.TrimSpace(description))
	if q == "" {
		return common.Article{}, false
	}
	var best common.Article
	bestScore := 0
	for _, a := range p.articles.All() {
		score := 0
		if strings.Contains(strings.ToLower(a.Title), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(a.Content), q) {
			score++
		}
		if score > bestScore {
			best, bestScore = a, score
		}
	}
	return best, bestScore > 0
}

// FindSimilar scores every other article against event: 0.3 for the same
// category, 0.3 times the share of event entities it mentions, 0.2 times
// the closeness of impact scores and 0.2 times embedding similarity when
// both have embeddings. Articles above 0.5 are returned, best first.
func (p *Predictor) FindSimilar(event common.Article) []Similar {
	entities := make(map[string]struct{}, len(event.Entities))
	for _, e := range event.Entities {
		entities[e] = struct{}{}
	}

	out := []Similar{}
	for _, a := range p.articles.All() {
		if a.ID == event.ID {
			continue
		}
		score := 0.0
		if a.Category == event.Category {
			score += 0.3
		}
		if len(entities) > 0 && len(a.Entities) > 0 {
			overlap := 0
			for _, e := range common.DedupeStrings(a.Entities) {
				if _, ok := entities[e]; ok {
					overlap++
				}
			}
			score += float64(overlap) / float64(len(entities)) * 0.3
		}
		score += (10 - math.Abs(a.ImpactScore-event.ImpactScore)) / 10 * 0.2
		if len(event.Embedding) > 0 && len(a.Embedding) > 0 {
			score += ai.Dot(event.Embedding, a.Embedding) * 0.2
		}
		if score > similarityThreshold {
			out = append(out, Similar{Article: a, Similarity: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > maxSimilar {
		out = out[:maxSimilar]
	}
	return out
}

// Analyze counts the effects in the causation chains of the similar
// articles.
func (p *Predictor) Analyze(similar []Similar) PatternSummary {
	type effectKey struct {
		category string
		typ      common.RelationshipType
	}
	effects := map[effectKey]int{}
	var effectList []EffectCount
	industries := newCounter()
	types := newCounter()

	for _, s := range similar {
		for _, c := range p.chains.BuildCausationChain(s.Article.Title, precedentChainDepth) {
			for i, node := range c.Nodes[1:] {
				if i >= len(c.Links) {
					break
				}
				link := c.Links[i]
				k := effectKey{node.Category, link.Type}
				idx, ok := effects[k]
				if !ok {
					idx = len(effectList)
					effects[k] = idx
					effectList = append(effectList, EffectCount{Category: node.Category, Type: link.Type})
				}
				effectList[idx].Count++
				effectList[idx].Gaps = append(effectList[idx].Gaps, link.TemporalGapDays)
				industries.add(node.Category)
				types.add(string(link.Type))
			}
		}
	}

	sort.SliceStable(effectList, func(i, j int) bool { return effectList[i].Count > effectList[j].Count })
	if effectList == nil {
		effectList = []EffectCount{}
	}
	return PatternSummary{
		CommonEffects:      effectList,
		AffectedIndustries: industries.sorted(),
		RelationshipTypes:  types.sorted(),
	}
}

type counter struct {
	index map[string]int
	items []NameCount
}

func newCounter() *counter {
	return &counter{index: map[string]int{}}
}

func (c *counter) add(name string) {
	idx, ok := c.index[name]
	if !ok {
		idx = len(c.items)
		c.index[name] = idx
		c.items = append(c.items, NameCount{Name: name})
	}
	c.items[idx].Count++
}

func (c *counter) sorted() []NameCount {
	out := append([]NameCount{}, c.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Confidence scores a prediction: 0.5 base, 0.2 with more than five
// precedents or 0.1 with more than two, 0.1 for an established
// relationship type and 0.1 when the effect starts within thirty days.
func Confidence(t common.RelationshipType, tf Timeframe, precedents int) float64 {
	c := 0.5
	switch {
	case precedents > 5:
		c += 0.2
	case precedents > 2:
		c += 0.1
	}
	if t.Established() {
		c += 0.1
	}
	if tf.Min() < nearTermDays {
		c += 0.1
	}
	return math.Min(c, maxConfidence)
}

// Predict forecasts the effects of event that start within horizonDays.
// Drafts with an unknown impact type are dropped. A failing or empty
// primary forecaster falls back to the historical one.
func (p *Predictor) Predict(ctx context.Context, event common.Article, horizonDays int) ([]Prediction, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	similar := p.FindSimilar(event)
	summary := p.Analyze(similar)

	drafts, err := p.forecast(ctx, event, summary)
	if err != nil {
		return nil, err
	}

	precedents := make([]common.Article, 0, maxPrecedents)
	for i, s := range similar {
		if i >= maxPrecedents {
			break
		}
		a := s.Article
		a.Embedding = nil
		precedents = append(precedents, a)
	}

	out := []Prediction{}
	for _, d := range drafts {
		typ, ok := common.ParseRelationshipType(d.ImpactType)
		if !ok {
			plog.Debug("Dropping prediction with unknown impact type", "event", event.ID, "type", d.ImpactType)
			continue
		}
		tf := normalizeTimeframe(d.Timeframe)
		if tf.Min() > horizonDays {
			continue
		}
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("prediction id: %w", err)
		}
		out = append(out, Prediction{
			ID:                     id,
			SourceEvent:            EventRef{ID: event.ID, Title: event.Title},
			PredictedImpact:        d.Impact,
			AffectedIndustries:     nonNil(d.Industries),
			AffectedEntities:       nonNil(d.Entities),
			ImpactType:             typ,
			Confidence:             Confidence(typ, tf, len(similar)),
			EstimatedTimeframeDays: tf,
			Reasoning:              d.Reasoning,
			HistoricalPrecedents:   precedents,
			PrecedentCount:         len(precedents),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxPredictions {
		out = out[:maxPredictions]
	}
	plog.Info("Predicted ripple effects", "event", event.ID, "similar", len(similar), "predictions", len(out))
	return out, nil
}

func (p *Predictor) forecast(ctx context.Context, event common.Article, summary PatternSummary) ([]Draft, error) {
	if p.forecaster != nil {
		drafts, err := p.forecaster.Forecast(ctx, event, summary)
		if err == nil && len(drafts) > 0 {
			return drafts, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			plog.Warn("Forecaster failed, using historical patterns", "event", event.ID, "err", err)
		}
	}
	return p.fallback.Forecast(ctx, event, summary)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// TimelineEstimate is an estimated delay between a cause and an effect.
type TimelineEstimate struct {
	MinDays int `json:"min_days"`
	MaxDays int `json:"max_days"`

	// Basis is "historical", "forecast" or "default".
	Basis   string `json:"basis"`
	Samples int    `json:"samples"`
}

// EstimateTimeline estimates when target follows the article. Past effects
// of same-category sources whose title contains target give the 10th to
// 90th percentile of their gaps. Without history the timeline estimator is
// asked, and failing that DefaultTimeframe is returned.
func (p *Predictor) EstimateTimeline(ctx context.Context, id common.ArticleID, target string) (TimelineEstimate, error) {
	a, err := p.articles.Get(id)
	if err != nil {
		return TimelineEstimate{}, fmt.Errorf("estimate timeline: %w", err)
	}

	if gaps := p.patterns.Gaps(a.Category, target); len(gaps) > 0 {
		lo := max(int(math.Trunc(Percentile(gaps, 10))), 0)
		hi := max(int(math.Trunc(Percentile(gaps, 90))), lo)
		return TimelineEstimate{MinDays: lo, MaxDays: hi, Basis: "historical", Samples: len(gaps)}, nil
	}

	if p.timeline != nil {
		tf, err := p.timeline.EstimateTimeline(ctx, a, target)
		if err == nil {
			return TimelineEstimate{MinDays: tf.Min(), MaxDays: tf.Max(), Basis: "forecast"}, nil
		}
		plog.Warn("Timeline estimate failed", "article", id, "err", err)
	}
	return TimelineEstimate{MinDays: DefaultTimeframe.Min(), MaxDays: DefaultTimeframe.Max(), Basis: "default"}, nil
}

// IndustryPrediction is a prediction as listed under one industry.
type IndustryPrediction struct {
	Impact     string                  `json:"impact"`
	Confidence float64                 `json:"confidence"`
	Timeframe  Timeframe               `json:"timeframe"`
	ImpactType common.RelationshipType `json:"impact_type"`
}

type IndustryReport struct {
	DirectImpacts        map[string][]IndustryPrediction `json:"direct_impacts"`
	CrossIndustryEffects map[string][]IndustryImpact     `json:"cross_industry_effects"`
}

// AffectedIndustries groups the predictions for event by industry and adds
// the categories already reached by its ripple effects.
func (p *Predictor) AffectedIndustries(ctx context.Context, event common.Article) (IndustryReport, error) {
	preds, err := p.Predict(ctx, event, DefaultHorizonDays)
	if err != nil {
		return IndustryReport{}, err
	}

	report := IndustryReport{
		DirectImpacts:        map[string][]IndustryPrediction{},
		CrossIndustryEffects: map[string][]IndustryImpact{},
	}
	for _, pred := range preds {
		for _, industry := range pred.AffectedIndustries {
			report.DirectImpacts[industry] = append(report.DirectImpacts[industry], IndustryPrediction{
				Impact:     pred.PredictedImpact,
				Confidence: pred.Confidence,
				Timeframe:  pred.EstimatedTimeframeDays,
				ImpactType: pred.ImpactType,
			})
		}
	}

	if ripple, err := p.propagator.Track(event.ID, DefaultMaxHops); err == nil {
		report.CrossIndustryEffects = ripple.CrossIndustry
	}
	return report, nil
}
