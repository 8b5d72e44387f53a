package ripple

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// Timeframe is a (min, max) range in days.
type Timeframe [2]int

func (t Timeframe) Min() int { return t[0] }
func (t Timeframe) Max() int { return t[1] }

// DefaultTimeframe is used when neither history nor a forecaster can
// estimate a timeline.
var DefaultTimeframe = Timeframe{7, 90}

// normalizeTimeframe reads a model supplied range, clamping negatives and
// ordering the bounds.
func normalizeTimeframe(days []int) Timeframe {
	switch len(days) {
	case 0:
		return DefaultTimeframe
	case 1:
		d := max(days[0], 0)
		return Timeframe{d, d}
	}
	lo, hi := max(days[0], 0), max(days[1], 0)
	if lo > hi {
		lo, hi = hi, lo
	}
	return Timeframe{lo, hi}
}

// Draft is an unscored prediction as produced by a forecaster.
type Draft struct {
	Impact     string   `json:"impact"`
	Industries []string `json:"industries"`
	Entities   []string `json:"entities"`
	ImpactType string   `json:"impact_type"`
	Timeframe  []int    `json:"timeframe"`
	Reasoning  string   `json:"reasoning"`
}

type forecastResponse struct {
	Predictions []Draft `json:"predictions"`
}

// EarlyIndicator is a measurable signal that a predicted impact is
// beginning.
type EarlyIndicator struct {
	Indicator    string `json:"indicator"`
	Threshold    string `json:"threshold"`
	DataSource   string `json:"data_source"`
	LeadTimeDays int    `json:"lead_time_days"`
}

type indicatorResponse struct {
	Indicators []EarlyIndicator `json:"indicators"`
}

type timelineResponse struct {
	MinDays   int    `json:"min_days"`
	MaxDays   int    `json:"max_days"`
	Reasoning string `json:"reasoning"`
}

// Forecaster proposes future effects of an event given the patterns seen
// after similar events.
type Forecaster interface {
	Forecast(ctx context.Context, event common.Article, summary PatternSummary) ([]Draft, error)
}

// TimelineEstimator guesses how long cause takes to produce target when
// there is no history to go by.
type TimelineEstimator interface {
	EstimateTimeline(ctx context.Context, cause common.Article, target string) (Timeframe, error)
}

// IndicatorFinder lists what to watch for before a prediction
// materializes.
type IndicatorFinder interface {
	EarlyIndicators(ctx context.Context, pred Prediction) ([]EarlyIndicator, error)
}

const (
	maxIndicators        = 5
	forecastContentLimit = 400
	summaryTopN          = 5
)

// LLMForecaster asks a structured-output model for predictions.
type LLMForecaster struct {
	client  ai.StructuredGenerator
	retries int
	backoff time.Duration
	opts    []ai.GenerateOption
}

func NewLLMForecaster(client ai.StructuredGenerator, retries int, opts ...ai.GenerateOption) *LLMForecaster {
	if retries < 0 {
		retries = 0
	}
	return &LLMForecaster{client: client, retries: retries, backoff: time.Second, opts: opts}
}

func (f *LLMForecaster) Forecast(ctx context.Context, event common.Article, summary PatternSummary) ([]Draft, error) {
	prompt := BuildForecastPrompt(event, summary)
	res, err := util.RetryWithContext(ctx, f.retries+1, func(ctx context.Context) (forecastResponse, error) {
		var out forecastResponse
		err := f.client.GenerateCompletionWithFormat(
			ctx,
			"impact_predictions",
			"Predicted future impacts of a news event",
			prompt,
			&out,
			f.opts...,
		)
		return out, err
	}, util.WithBackoff(f.backoff, 8*f.backoff))
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", event.ID, err)
	}
	return res.Predictions, nil
}

func (f *LLMForecaster) EstimateTimeline(ctx context.Context, cause common.Article, target string) (Timeframe, error) {
	prompt := fmt.Sprintf(ai.TimelinePrompt, cause.Title, target)
	res, err := util.RetryWithContext(ctx, f.retries+1, func(ctx context.Context) (timelineResponse, error) {
		var out timelineResponse
		err := f.client.GenerateCompletionWithFormat(
			ctx,
			"timeline_estimate",
			"Estimated days until an effect appears and fully materializes",
			prompt,
			&out,
			f.opts...,
		)
		return out, err
	}, util.WithBackoff(f.backoff, 8*f.backoff))
	if err != nil {
		return Timeframe{}, fmt.Errorf("estimate timeline for %s: %w", cause.ID, err)
	}
	return normalizeTimeframe([]int{res.MinDays, res.MaxDays}), nil
}

func (f *LLMForecaster) EarlyIndicators(ctx context.Context, pred Prediction) ([]EarlyIndicator, error) {
	prompt := fmt.Sprintf(ai.EarlyIndicatorsPrompt,
		pred.PredictedImpact,
		"["+strings.Join(pred.AffectedIndustries, ", ")+"]",
		pred.EstimatedTimeframeDays.Min(),
		pred.EstimatedTimeframeDays.Max(),
	)
	res, err := util.RetryWithContext(ctx, f.retries+1, func(ctx context.Context) (indicatorResponse, error) {
		var out indicatorResponse
		err := f.client.GenerateCompletionWithFormat(
			ctx,
			"early_indicators",
			"Measurable early warning indicators for a predicted impact",
			prompt,
			&out,
			f.opts...,
		)
		return out, err
	}, util.WithBackoff(f.backoff, 8*f.backoff))
	if err != nil {
		return nil, fmt.Errorf("early indicators for %q: %w", pred.PredictedImpact, err)
	}
	return res.Indicators, nil
}

// EarlyIndicators asks the indicator finder what signals pred. Without a
// finder, or when it fails, the list is empty. Indicators without a
// description are dropped and negative lead times clamp to zero.
func (p *Predictor) EarlyIndicators(ctx context.Context, pred Prediction) []EarlyIndicator {
	out := []EarlyIndicator{}
	if p.indicators == nil {
		return out
	}
	found, err := p.indicators.EarlyIndicators(ctx, pred)
	if err != nil {
		plog.Error("Error finding early indicators", "prediction", pred.ID, "err", err)
		return out
	}
	for _, ind := range found {
		if strings.TrimSpace(ind.Indicator) == "" {
			continue
		}
		ind.LeadTimeDays = max(ind.LeadTimeDays, 0)
		out = append(out, ind)
		if len(out) == maxIndicators {
			break
		}
	}
	return out
}

// BuildForecastPrompt renders the prediction prompt for event.
func BuildForecastPrompt(event common.Article, summary PatternSummary) string {
	effects := make([]string, 0, summaryTopN)
	for i, e := range summary.CommonEffects {
		if i >= summaryTopN {
			break
		}
		effects = append(effects, fmt.Sprintf("%s-%s", e.Category, e.Type))
	}
	industries := make([]string, 0, summaryTopN)
	for i, c := range summary.AffectedIndustries {
		if i >= summaryTopN {
			break
		}
		industries = append(industries, c.Name)
	}
	types := make([]string, len(common.RelationshipTypes))
	for i, info := range common.RelationshipTypes {
		types[i] = string(info.Type)
	}

	return fmt.Sprintf(ai.ForecastPrompt,
		event.Title,
		event.Category,
		event.ImpactScore,
		util.Truncate(event.Content, forecastContentLimit),
		"["+strings.Join(effects, ", ")+"]",
		"["+strings.Join(industries, ", ")+"]",
		strings.Join(types, ", "),
	)
}

// HistoricalForecaster turns the most common effects after similar events
// directly into predictions, timed by the observed gaps.
type HistoricalForecaster struct{}

func (HistoricalForecaster) Forecast(_ context.Context, event common.Article, summary PatternSummary) ([]Draft, error) {
	drafts := []Draft{}
	for i, e := range summary.CommonEffects {
		if i >= summaryTopN {
			break
		}
		tf := DefaultTimeframe
		if len(e.Gaps) > 0 {
			lo := max(int(math.Trunc(Percentile(e.Gaps, 10))), 0)
			hi := max(int(math.Trunc(Percentile(e.Gaps, 90))), lo)
			tf = Timeframe{lo, hi}
		}
		drafts = append(drafts, Draft{
			Impact:     fmt.Sprintf("%s in %s", describeType(e.Type), e.Category),
			Industries: []string{e.Category},
			Entities:   event.Entities,
			ImpactType: string(e.Type),
			Timeframe:  []int{tf.Min(), tf.Max()},
			Reasoning:  fmt.Sprintf("Observed %d times in the causation chains of similar past events", e.Count),
		})
	}
	return drafts, nil
}

func describeType(t common.RelationshipType) string {
	for _, info := range common.RelationshipTypes {
		if info.Type == t {
			return info.Description
		}
	}
	return string(t)
}
