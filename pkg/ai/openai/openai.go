package openai

import (
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// OpenAIClient talks to an OpenAI compatible API. Chat and embedding
// endpoints are configured separately so they can point at different
// providers.
//
// An OpenAIClient should be created using NewOpenAIClient.
type OpenAIClient struct {
	ai.MetricsRecorder

	chatModel      string
	embeddingModel string
	chatURL        string
	temperature    float64
	timeout        time.Duration

	requestLock *semaphore.Weighted

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewOpenAIClientParams defines the configuration parameters for creating
// a new OpenAIClient.
//
// ChatURL and EmbeddingURL may be empty to use the public OpenAI endpoint.
// ParallelRequests bounds in-flight requests across both endpoints.
type NewOpenAIClientParams struct {
	ChatModel      string
	EmbeddingModel string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	Temperature      float64
	Timeout          time.Duration
	ParallelRequests int64
}

// NewOpenAIClient creates a client for the given endpoints. A missing key
// leaves the corresponding sub-client nil; callers validate credentials
// before constructing the client.
//
// Example:
//
//	client := openai.NewOpenAIClient(openai.NewOpenAIClientParams{
//		ChatModel:      "gpt-4o-mini",
//		EmbeddingModel: "text-embedding-3-small",
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//	})
func NewOpenAIClient(params NewOpenAIClientParams) *OpenAIClient {
	if params.ParallelRequests <= 0 {
		params.ParallelRequests = 8
	}
	if params.Timeout <= 0 {
		params.Timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		chatURL:        params.ChatURL,
		temperature:    params.Temperature,
		timeout:        params.Timeout,

		requestLock: semaphore.NewWeighted(params.ParallelRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
