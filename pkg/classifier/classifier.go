/*
Package classifier labels candidate article pairs as causally related.

The classifier is treated as an untrusted remote oracle: its output is
returned raw and validated by the discovery engine.
*/
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
)

// Edge is one unvalidated classifier judgment for a candidate.
type Edge struct {
	TargetID    string  `json:"target_id"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	ImpactLevel string  `json:"impact_level"`
}

type batchResponse struct {
	Relationships []Edge `json:"relationships"`
}

// Classifier judges a batch of candidates against a source article.
type Classifier interface {
	ClassifyBatch(ctx context.Context, source common.Article, candidates []common.Article) ([]Edge, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, source common.Article, candidates []common.Article) ([]Edge, error)

func (f Func) ClassifyBatch(ctx context.Context, source common.Article, candidates []common.Article) ([]Edge, error) {
	return f(ctx, source, candidates)
}

const (
	sourceContentLimit    = 1000
	candidateContentLimit = 500
)

var log = logger.Component("Classifier")

// LLMClassifier prompts a structured-output model with the source article,
// the candidate summaries and the relationship taxonomy.
type LLMClassifier struct {
	client    ai.StructuredGenerator
	threshold float64
	retries   int
	backoff   time.Duration
}

type Option func(*LLMClassifier)

// WithRetries sets how often a failed call is attempted again.
func WithRetries(n int) Option {
	return func(c *LLMClassifier) {
		if n >= 0 {
			c.retries = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(c *LLMClassifier) {
		c.backoff = d
	}
}

// NewLLMClassifier asks the model to only report edges at or above
// threshold. The engine still enforces the threshold itself.
func NewLLMClassifier(client ai.StructuredGenerator, threshold float64, opts ...Option) *LLMClassifier {
	c := &LLMClassifier{
		client:    client,
		threshold: threshold,
		retries:   2,
		backoff:   500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LLMClassifier) ClassifyBatch(
	ctx context.Context,
	source common.Article,
	candidates []common.Article,
) ([]Edge, error) {
	if len(candidates) == 0 {
		return []Edge{}, nil
	}

	prompt := BuildPrompt(source, candidates, c.threshold)
	log.Debug("Classifying batch", "source", source.ID, "candidates", len(candidates), "tokens", ai.CountTokens(prompt))

	res, err := util.RetryWithContext(ctx, c.retries+1, func(ctx context.Context) (batchResponse, error) {
		var out batchResponse
		err := c.client.GenerateCompletionWithFormat(
			ctx,
			"causal_relationships",
			"Causal relationships between a source article and candidate articles",
			prompt,
			&out,
		)
		return out, err
	}, util.WithBackoff(c.backoff, 8*c.backoff))
	if err != nil {
		if errors.Is(err, ai.ErrMalformedOutput) {
			return nil, fmt.Errorf("%w: %v", common.ErrClassifierMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrClassifierUnavailable, err)
	}
	if res.Relationships == nil {
		return []Edge{}, nil
	}
	return res.Relationships, nil
}

// BuildPrompt renders the batch classification prompt.
func BuildPrompt(source common.Article, candidates []common.Article, threshold float64) string {
	var types strings.Builder
	for _, info := range common.RelationshipTypes {
		fmt.Fprintf(&types, "- %s: %s\n", info.Type, info.Description)
	}

	var cands strings.Builder
	for _, a := range candidates {
		fmt.Fprintf(&cands, ai.CandidateSummaryPrompt,
			a.ID,
			a.Title,
			a.Category,
			strings.Join(a.Entities, ", "),
			util.Truncate(a.Content, candidateContentLimit),
		)
	}

	return fmt.Sprintf(ai.RelationshipBatchPrompt,
		source.ID,
		source.Title,
		source.Category,
		strings.Join(source.Entities, ", "),
		util.Truncate(source.Content, sourceContentLimit),
		types.String(),
		cands.String(),
		threshold,
	)
}
