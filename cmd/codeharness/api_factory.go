package main

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/codeharness/internal/api"
	"github.com/ShayCichocki/codeharness/internal/config"
	"github.com/ShayCichocki/codeharness/internal/eval"
	"github.com/ShayCichocki/codeharness/internal/runtime"
)

// newGeneratorFactory returns a factory for the configured provider. The
// factory is only invoked when a task needs code, so a missing credential
// surfaces as a per-task error and dry runs never need one.
func newGeneratorFactory(cfg *config.Config, provider api.Provider, model string, tracker *api.TokenTracker) eval.GeneratorFactory {
	return func() (api.Generator, error) {
		var gen api.Generator

		switch provider {
		case api.ProviderAnthropic:
			client, err := api.NewClient(api.ClientConfig{
				Model:         anthropic.Model(model),
				APIKey:        config.APIKey(cfg, string(api.ProviderAnthropic)),
				UseAWSBedrock: cfg.Anthropic.UseBedrock,
				AWSRegion:     cfg.Anthropic.AWSRegion,
				AWSProfile:    cfg.Anthropic.AWSProfile,
				Tracker:       tracker,
			})
			if err != nil {
				return nil, err
			}
			gen = api.NewAnthropicGenerator(client, int64(cfg.API.MaxTokens), cfg.API.Temperature)
		default:
			g, err := api.NewOpenAIGenerator(api.OpenAIConfig{
				APIKey:      config.APIKey(cfg, string(api.ProviderOpenAI)),
				BaseURL:     cfg.OpenAI.BaseURL,
				Model:       model,
				Endpoint:    api.Endpoint(cfg.API.Endpoint),
				MaxTokens:   cfg.API.MaxTokens,
				Temperature: cfg.API.Temperature,
				Tracker:     tracker,
			})
			if err != nil {
				return nil, err
			}
			gen = g
		}

		return api.WithRetries(api.WithRateLimit(gen, cfg.API.RateLimit), cfg.API.MaxRetries), nil
	}
}

// newRuntimeRegistry builds the runtimes for every supported task language.
func newRuntimeRegistry(cfg *config.Config) *runtime.Registry {
	return runtime.NewRegistry(
		runtime.NewPythonRuntime(runtime.PythonConfig{
			Interpreter: cfg.Runtime.Python,
			Timeout:     cfg.Runtime.Timeout,
		}),
		runtime.NewGoRuntime(cfg.Runtime.Timeout),
	)
}
