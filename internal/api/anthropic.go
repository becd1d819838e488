package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicGenerator generates code with the Anthropic messages API.
type AnthropicGenerator struct {
	client      *Client
	maxTokens   int64
	temperature float64
}

// NewAnthropicGenerator creates a generator on top of client.
func NewAnthropicGenerator(client *Client, maxTokens int64, temperature float64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicGenerator{client: client, maxTokens: maxTokens, temperature: temperature}
}

// Generate sends prompt as a single user message and returns the text blocks.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	slog.Debug("generating code via Anthropic", "model", g.client.Model(), "bedrock", g.client.IsBedrock())

	resp, err := g.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.client.Model(),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(g.temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API call failed: %w", err)
	}

	g.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	return &Completion{
		Text:         text.String(),
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
