package ripple

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/google/go-cmp/cmp"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return s.err
	}
	return ai.UnmarshalFlexible(s.response, out)
}

type stubIndicators struct {
	found []EarlyIndicator
	err   error
}

func (s stubIndicators) EarlyIndicators(ctx context.Context, pred Prediction) ([]EarlyIndicator, error) {
	return s.found, s.err
}

var evPrediction = Prediction{
	ID:                     "p1",
	PredictedImpact:        "EV makers cut prices",
	AffectedIndustries:     []string{"Automotive", "Energy"},
	EstimatedTimeframeDays: Timeframe{7, 30},
}

func TestLLMForecaster_EarlyIndicators(t *testing.T) {
	gen := &stubGenerator{response: `{"indicators":[{"indicator":"Lithium spot price","threshold":"10% drop","data_source":"Commodity exchanges","lead_time_days":14}]}`}

	got, err := NewLLMForecaster(gen, 0).EarlyIndicators(context.Background(), evPrediction)
	if err != nil {
		t.Fatalf("EarlyIndicators: %v", err)
	}
	want := []EarlyIndicator{{Indicator: "Lithium spot price", Threshold: "10% drop", DataSource: "Commodity exchanges", LeadTimeDays: 14}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("indicators mismatch (-want +got):\n%s", diff)
	}
	prompt := gen.prompts[0]
	for _, part := range []string{"EV makers cut prices", "[Automotive, Energy]", "7 to 30 days"} {
		if !strings.Contains(prompt, part) {
			t.Fatalf("prompt is missing %q:\n%s", part, prompt)
		}
	}
}

func TestPredictor_EarlyIndicators(t *testing.T) {
	many := []EarlyIndicator{
		{Indicator: "Dealer inventory", LeadTimeDays: 5},
		{Indicator: "  "},
		{Indicator: "Battery cell prices", LeadTimeDays: -3},
		{Indicator: "Registrations"},
		{Indicator: "Charging station orders"},
		{Indicator: "Auto loan rates"},
		{Indicator: "Used EV prices"},
	}

	tests := []struct {
		name string
		opts []PredictorOption
		want []string
		lead int
	}{
		{name: "no finder", want: []string{}},
		{
			name: "llm failure",
			opts: []PredictorOption{WithIndicatorFinder(NewLLMForecaster(&stubGenerator{err: errors.New("rate limited")}, 0))},
			want: []string{},
		},
		{
			name: "finder error",
			opts: []PredictorOption{WithIndicatorFinder(stubIndicators{err: errors.New("down")})},
			want: []string{},
		},
		{
			name: "filters and caps",
			opts: []PredictorOption{WithIndicatorFinder(stubIndicators{found: many})},
			want: []string{"Dealer inventory", "Battery cell prices", "Registrations", "Charging station orders", "Auto loan rates"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPredictor(nil, stubChains{}, nil, NewPatternDB(), tc.opts...)
			got := p.EarlyIndicators(context.Background(), evPrediction)
			if got == nil {
				t.Fatal("expected non-nil result")
			}
			names := []string{}
			for _, ind := range got {
				if ind.LeadTimeDays < 0 {
					t.Fatalf("negative lead time in %+v", ind)
				}
				names = append(names, ind.Indicator)
			}
			if diff := cmp.Diff(tc.want, names); diff != "" {
				t.Fatalf("indicators mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindEvent(t *testing.T) {
	articles := []common.Article{
		{ID: "a1", Title: "Fed raises rates", Content: "Mortgage costs climb."},
		{ID: "a2", Title: "Mortgage costs climb", Content: "Mortgage costs climb after the Fed decision."},
		{ID: "a3", Title: "Housing slows", Content: "The Fed move hits housing."},
	}
	s, err := store.NewArticleStore(articles)
	if err != nil {
		t.Fatalf("NewArticleStore: %v", err)
	}
	p := NewPredictor(s, stubChains{}, nil, NewPatternDB())

	tests := []struct {
		query string
		want  common.ArticleID
		found bool
	}{
		{query: "mortgage costs", want: "a2", found: true},
		{query: "FED RAISES", want: "a1", found: true},
		// body-only matches tie, the first article wins
		{query: "the fed", want: "a2", found: true},
		{query: "wheat", found: false},
		{query: "  ", found: false},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, ok := p.FindEvent(tc.query)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if ok && got.ID != tc.want {
				t.Fatalf("matched %s, want %s", got.ID, tc.want)
			}
		})
	}
}
