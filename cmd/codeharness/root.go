package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codeharness/internal/config"
	"github.com/ShayCichocki/codeharness/internal/exitcode"
	hlog "github.com/ShayCichocki/codeharness/internal/log"
)

var (
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codeharness",
	Short: "Evaluate code-generation models on small programming tasks",
	Long: `codeharness sends natural-language coding prompts to a code-generation
API, executes the code that comes back, and checks the named function
against literal input/output pairs.

With no subcommand it behaves like 'codeharness eval' over the built-in
suite (add, reverse_string, factorial). Use --dry-run to print the tasks
without calling the API.

Credentials are read from OPENAI_API_KEY or ANTHROPIC_API_KEY.
Configuration is read from ~/.config/codeharness/config.yaml and
.codeharness.yaml in the current directory or a parent.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runEval,
}

// loadConfig loads configuration and installs the logger before any command runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return exitcode.Usage(err)
	}
	cfg = loaded

	level := hlog.ParseLevel(cfg.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	hlog.Setup(hlog.Config{
		Level:  level,
		Format: hlog.ParseFormat(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
	})
	slog.Debug("configuration loaded",
		"user_config", config.GetUserConfigPath(),
		"project_config", config.GetProjectConfigPath(),
		"provider", cfg.API.Provider)
	return nil
}

// Execute runs the root command and exits with a status derived from the error.
func Execute() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, exitcode.ErrTasksFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	exitcode.ExitWithError(err)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and per-task usage details")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Usage(err)
	})

	addEvalFlags(rootCmd)

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
