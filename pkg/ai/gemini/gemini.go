/*
Package gemini adapts the Google Gemini API to ai.Client.
*/
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/ai"

	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"
)

type GeminiClient struct {
	ai.MetricsRecorder

	chatModel      string
	embeddingModel string
	temperature    float64
	timeout        time.Duration

	reqLock *semaphore.Weighted

	Client *genai.Client
}

type NewGeminiClientParams struct {
	ApiKey         string
	ChatModel      string
	EmbeddingModel string

	Temperature      float64
	Timeout          time.Duration
	ParallelRequests int64
}

func NewGeminiClient(ctx context.Context, params NewGeminiClientParams) (*GeminiClient, error) {
	if params.ApiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if params.ParallelRequests <= 0 {
		params.ParallelRequests = 8
	}
	if params.Timeout <= 0 {
		params.Timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  params.ApiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		temperature:    params.Temperature,
		timeout:        params.Timeout,
		reqLock:        semaphore.NewWeighted(params.ParallelRequests),
		Client:         client,
	}, nil
}

func (c *GeminiClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: c.temperature,
	}, opts...)

	temp := float32(options.Temperature)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: ai.GenerateSchema(out),
		Temperature:        &temp,
	}
	if len(options.SystemPrompts) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(options.SystemPrompts, "\n\n"), genai.RoleUser)
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{{Text: prompt}},
			Role:  genai.RoleUser,
		},
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	resp, err := c.Client.Models.GenerateContent(rCtx, options.Model, contents, cfg)
	if err != nil {
		return fmt.Errorf("gemini API call failed: %w", err)
	}

	m := ai.ModelMetrics{DurationMs: time.Since(start).Milliseconds()}
	if u := resp.UsageMetadata; u != nil {
		m.InputTokens = int(u.PromptTokenCount)
		m.OutputTokens = int(u.CandidatesTokenCount)
		m.TotalTokens = int(u.TotalTokenCount)
	}
	c.Record(m)

	text := resp.Text()
	if text == "" {
		return errors.New("gemini returned an empty response")
	}
	return ai.UnmarshalFlexible(text, out)
}

func (c *GeminiClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, []string{string(input)})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (c *GeminiClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	idxMap := make([]int, 0, len(inputs))
	contents := make([]*genai.Content, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		idxMap = append(idxMap, i)
		contents = append(contents, genai.NewContentFromText(in, genai.RoleUser))
	}
	if len(contents) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	resp, err := c.Client.Models.EmbedContent(rCtx, c.embeddingModel, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding call failed: %w", err)
	}
	c.Record(ai.ModelMetrics{DurationMs: time.Since(start).Milliseconds()})

	if len(resp.Embeddings) != len(contents) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(resp.Embeddings), len(contents))
	}
	for i, e := range resp.Embeddings {
		out[idxMap[i]] = e.Values
	}
	return out, nil
}
