package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codeharness/internal/config"
	"github.com/ShayCichocki/codeharness/internal/exitcode"
	"github.com/ShayCichocki/codeharness/internal/runtime"
	"github.com/ShayCichocki/codeharness/internal/state"
)

var configCmd = &cobra.Command{
	Use:   "config [KEY]",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the user config file,
the project .codeharness.yaml and the environment. API keys are masked.

With KEY (for example api.model) only that value is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			v, err := getConfigValue(cfg, args[0])
			if err != nil {
				return exitcode.Usage(err)
			}
			fmt.Fprintln(out, v)
			return nil
		}
		printConfig(out, cfg)
		printInterpreter(cmd.Context(), out, cfg)
		return nil
	},
}

// configEntries flattens c into dotted keys in display order, with API
// keys masked.
func configEntries(c *config.Config) [][2]string {
	dbPath := c.History.DBPath
	if dbPath == "" {
		dbPath = state.GlobalDBPath()
	}
	return [][2]string{
		{"api.provider", c.API.Provider},
		{"api.model", c.API.Model},
		{"api.endpoint", c.API.Endpoint},
		{"api.max_tokens", fmt.Sprint(c.API.MaxTokens)},
		{"api.temperature", fmt.Sprint(c.API.Temperature)},
		{"api.max_retries", fmt.Sprint(c.API.MaxRetries)},
		{"api.rate_limit", fmt.Sprint(c.API.RateLimit)},
		{"openai.api_key", config.MaskAPIKey(c.OpenAI.APIKey)},
		{"openai.base_url", c.OpenAI.BaseURL},
		{"anthropic.api_key", config.MaskAPIKey(c.Anthropic.APIKey)},
		{"anthropic.use_bedrock", fmt.Sprint(c.Anthropic.UseBedrock)},
		{"anthropic.aws_region", c.Anthropic.AWSRegion},
		{"anthropic.aws_profile", c.Anthropic.AWSProfile},
		{"runtime.python", c.Runtime.Python},
		{"runtime.timeout", c.Runtime.Timeout.String()},
		{"history.enabled", fmt.Sprint(c.History.Enabled)},
		{"history.db_path", dbPath},
		{"metrics.textfile", c.Metrics.Textfile},
		{"log.level", c.Log.Level},
		{"log.format", c.Log.Format},
	}
}

func getConfigValue(c *config.Config, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, e := range configEntries(c) {
		if e[0] == key {
			return e[1], nil
		}
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

func printConfig(w io.Writer, c *config.Config) {
	user := config.GetUserConfigPath()
	project := config.GetProjectConfigPath()
	if project == "" {
		project = "(none)"
	}
	fmt.Fprintf(w, "User config:    %s\n", user)
	fmt.Fprintf(w, "Project config: %s\n\n", project)

	for _, e := range configEntries(c) {
		value := e[1]
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintf(w, "%-22s %s\n", e[0], value)
	}

	fmt.Fprintln(w)
	for _, provider := range []string{"openai", "anthropic"} {
		fmt.Fprintf(w, "%s key source: %s\n", provider, config.GetAPIKeySource(c, provider))
		if key := config.APIKey(c, provider); key != "" {
			if err := config.ValidateAPIKey(provider, key); err != nil {
				fmt.Fprintf(w, "  warning: %s key looks malformed: %v\n", provider, err)
			}
		}
	}
}

func printInterpreter(ctx context.Context, w io.Writer, c *config.Config) {
	py := runtime.NewPythonRuntime(runtime.PythonConfig{Interpreter: c.Runtime.Python, Timeout: 5 * time.Second})
	v, err := py.Version(ctx)
	if err != nil {
		v = "unavailable (" + err.Error() + ")"
	}
	fmt.Fprintf(w, "python interpreter: %s\n", v)
}
