package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is a model served by the legacy completions endpoint.
const DefaultOpenAIModel = openai.GPT3Dot5TurboInstruct

// Endpoint selects which OpenAI API a generator calls.
type Endpoint string

const (
	// EndpointCompletions sends the prompt verbatim to /completions.
	EndpointCompletions Endpoint = "completions"
	// EndpointChat sends the prompt as a user message to /chat/completions.
	EndpointChat Endpoint = "chat"
)

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	// APIKey is the OpenAI key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for compatible servers.
	BaseURL string
	// Model defaults to DefaultOpenAIModel.
	Model string
	// Endpoint defaults to EndpointCompletions.
	Endpoint Endpoint
	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int
	// Temperature is the sampling temperature; 0 is deterministic.
	Temperature float64
	// Tracker accumulates usage when set.
	Tracker *TokenTracker
}

// OpenAIGenerator generates code with the OpenAI API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	endpoint    Endpoint
	maxTokens   int
	temperature float32
	tracker     *TokenTracker
}

// NewOpenAIGenerator creates an OpenAI-backed generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, missingKey("OPENAI_API_KEY")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = EndpointCompletions
	}
	if endpoint != EndpointCompletions && endpoint != EndpointChat {
		return nil, fmt.Errorf("unknown OpenAI endpoint %q", endpoint)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTokenTracker()
	}

	slog.Debug("initializing OpenAI client", "model", model, "endpoint", endpoint)
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		endpoint:    endpoint,
		maxTokens:   maxTokens,
		temperature: temperature(cfg.Temperature),
		tracker:     tracker,
	}, nil
}

// temperature maps 0 to math.SmallestNonzeroFloat32, because go-openai
// omits a zero temperature and the server would apply its own default.
// The request then carries "temperature": 1e-45.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// Model returns the configured model name.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Tracker returns the token tracker for this generator.
func (g *OpenAIGenerator) Tracker() *TokenTracker {
	return g.tracker
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	if g.endpoint == EndpointChat {
		return g.generateChat(ctx, prompt)
	}
	return g.generateCompletion(ctx, prompt)
}

func (g *OpenAIGenerator) generateCompletion(ctx context.Context, prompt string) (*Completion, error) {
	slog.Debug("generating code via OpenAI completions", "model", g.model)

	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       g.model,
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	g.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
	slog.Debug("received completion", "finish_reason", resp.Choices[0].FinishReason)

	return &Completion{
		Text:         resp.Choices[0].Text,
		Model:        resp.Model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

func (g *OpenAIGenerator) generateChat(ctx context.Context, prompt string) (*Completion, error) {
	slog.Debug("generating code via OpenAI chat", "model", g.model)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: g.maxTokens,
		Temperature:         g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	g.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
	slog.Debug("received chat completion", "finish_reason", resp.Choices[0].FinishReason)

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}
