// Package api turns task prompts into code by calling a code-generation API.
package api

import (
	"context"
	"errors"
	"fmt"
)

// Provider names a code-generation backend.
type Provider string

const (
	// ProviderOpenAI uses the OpenAI completions or chat API.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic uses the Anthropic messages API, directly or via Bedrock.
	ProviderAnthropic Provider = "anthropic"
)

// Valid returns true if the provider is a known value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic:
		return true
	default:
		return false
	}
}

// DefaultMaxTokens is the completion budget used when none is configured.
const DefaultMaxTokens = 256

// ErrNoAPIKey is wrapped by constructors when no credential is available.
var ErrNoAPIKey = errors.New("environment variable not set")

// ErrEmptyCompletion is returned when the API answers without any choices.
var ErrEmptyCompletion = errors.New("API returned no completion")

func missingKey(envVar string) error {
	return fmt.Errorf("%s %w", envVar, ErrNoAPIKey)
}

// Completion is the text returned for one prompt.
type Completion struct {
	// Text is the raw completion text.
	Text string
	// Model is the model that produced the text.
	Model string
	// InputTokens and OutputTokens report usage for this call.
	InputTokens  int64
	OutputTokens int64
}

// Generator produces code for a prompt. Implementations make exactly one
// API call per Generate.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Completion, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (*Completion, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (*Completion, error) {
	return f(ctx, prompt)
}

// systemPrompt is sent to chat-style endpoints, which otherwise answer in prose.
const systemPrompt = "You write code. Reply with only the requested code, with no explanation."
