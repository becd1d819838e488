package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codeharness/internal/api"
	"github.com/ShayCichocki/codeharness/internal/config"
	"github.com/ShayCichocki/codeharness/internal/eval"
	"github.com/ShayCichocki/codeharness/internal/exitcode"
	"github.com/ShayCichocki/codeharness/internal/metrics"
	"github.com/ShayCichocki/codeharness/internal/state"
	"github.com/ShayCichocki/codeharness/internal/suite"
	"github.com/ShayCichocki/codeharness/internal/watch"
)

// evalOptions are the eval flags.
type evalOptions struct {
	dryRun      bool
	suitePath   string
	tasks       []string
	provider    string
	model       string
	record      bool
	watch       bool
	metricsFile string
}

var evalFlags evalOptions

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Generate, execute and check code for each task",
	Long: `Run every task in the suite, strictly in order.

For each task the prompt is sent to the code-generation API, the returned
code is executed in a fresh namespace, and the named function is called
with each test case's arguments. The first result that differs from the
expected value fails the task. Failures are printed as they happen and
never stop the remaining tasks.

` + exitStatusHelp() + `
Examples:
  codeharness eval --dry-run
  codeharness eval --task add --task factorial
  codeharness eval --suite go_tasks.yaml --provider anthropic
  codeharness eval --suite tasks.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

// exitStatusHelp lists the exit codes for the long help.
func exitStatusHelp() string {
	var b strings.Builder
	b.WriteString("Exit status:\n")
	for _, code := range []int{exitcode.Success, exitcode.GeneralError, exitcode.UsageError} {
		fmt.Fprintf(&b, "  %d  %s\n", code, exitcode.GetExitCodeDescription(code))
	}
	return b.String()
}

func addEvalFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&evalFlags.dryRun, "dry-run", false, "Skip API calls and just display tasks")
	cmd.Flags().StringVarP(&evalFlags.suitePath, "suite", "s", "", "Suite YAML file (default: built-in suite)")
	cmd.Flags().StringArrayVarP(&evalFlags.tasks, "task", "t", nil, "Only run the named task (repeatable)")
	cmd.Flags().StringVar(&evalFlags.provider, "provider", "", "Code-generation provider: openai or anthropic (default from config)")
	cmd.Flags().StringVarP(&evalFlags.model, "model", "m", "", "Model name (default from config, then provider default)")
	cmd.Flags().BoolVar(&evalFlags.record, "record", false, "Record results in the history database")
	cmd.Flags().BoolVarP(&evalFlags.watch, "watch", "w", false, "Re-run whenever the suite file changes (requires --suite)")
	cmd.Flags().StringVar(&evalFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run (default from metrics.textfile)")
}

func init() {
	addEvalFlags(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	opts := evalFlags

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.watch {
		if opts.suitePath == "" {
			return exitcode.Usage(errors.New("--watch requires --suite"))
		}
		return watchEval(ctx, cfg, opts, cmd.OutOrStdout())
	}
	return executeEval(ctx, cfg, opts, cmd.OutOrStdout())
}

// resolveProvider applies flag, then config, then the provider's default model.
func resolveProvider(cfg *config.Config, opts evalOptions) (api.Provider, string, error) {
	provider := api.Provider(cfg.API.Provider)
	if opts.provider != "" {
		provider = api.Provider(opts.provider)
	}
	if !provider.Valid() {
		return "", "", exitcode.Usage(fmt.Errorf("unknown provider %q: expected openai or anthropic", provider))
	}

	model := cfg.API.Model
	if opts.model != "" {
		model = opts.model
	}
	if model == "" {
		if provider == api.ProviderAnthropic {
			model = string(api.DefaultAnthropicModel)
		} else {
			model = api.DefaultOpenAIModel
		}
	}
	return provider, model, nil
}

// executeEval runs the selected tasks once. It returns
// exitcode.ErrTasksFailed when any task failed; the failures themselves
// have already been printed.
func executeEval(ctx context.Context, cfg *config.Config, opts evalOptions, out io.Writer) error {
	s, err := suite.LoadOrBuiltin(opts.suitePath)
	if err != nil {
		return exitcode.Usage(err)
	}
	tasks, err := s.Filter(opts.tasks)
	if err != nil {
		return exitcode.Usage(err)
	}

	provider, model, err := resolveProvider(cfg, opts)
	if err != nil {
		return err
	}
	slog.Info("starting evaluation", "suite", s.Name, "tasks", len(tasks), "provider", provider, "model", model, "dry_run", opts.dryRun)

	var db *state.DB
	var run *state.Run
	var recorders []eval.Recorder
	if opts.record || cfg.History.Enabled {
		db, err = openHistory(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		run = &state.Run{Suite: s.Name, Provider: string(provider), Model: model, DryRun: opts.dryRun}
		if err := db.CreateRun(run); err != nil {
			return err
		}
		recorders = append(recorders, state.NewRecorder(db, run.ID))
	}

	metricsPath := cfg.Metrics.Textfile
	if opts.metricsFile != "" {
		metricsPath = opts.metricsFile
	}
	var m *metrics.Metrics
	if metricsPath != "" {
		m = metrics.New()
		recorders = append(recorders, m)
	}

	tracker := api.NewTokenTracker()
	runner := eval.NewRunner(
		newGeneratorFactory(cfg, provider, model, tracker),
		newRuntimeRegistry(cfg),
		eval.Options{DryRun: opts.dryRun, Out: out, Recorder: eval.Recorders(recorders...), Verbose: verbose},
	)
	report := runner.Run(ctx, tasks)

	if verbose && tracker.Calls() > 0 {
		in, outTok := tracker.Total()
		fmt.Fprintf(out, "Tokens used: %d in / %d out across %d calls\n", in, outTok, tracker.Calls())
	}

	if run != nil {
		status := state.RunPassed
		switch {
		case ctx.Err() != nil:
			status = state.RunInterrupted
		case !report.OK():
			status = state.RunFailed
		}
		if err := db.FinishRun(run.ID, status, time.Now()); err != nil {
			slog.Warn("failed to finish run", "run", run.ID, "error", err)
		}
		fmt.Fprintf(out, "Recorded run %s\n", run.ID)
	}

	if m != nil {
		if err := m.WriteFile(metricsPath); err != nil {
			slog.Warn("failed to write metrics", "path", metricsPath, "error", err)
		} else {
			slog.Debug("metrics written", "path", metricsPath)
		}
	}

	if !report.OK() {
		return exitcode.ErrTasksFailed
	}
	return nil
}

// watchEval runs once, then again after every change to the suite file
// until interrupted.
func watchEval(ctx context.Context, cfg *config.Config, opts evalOptions, out io.Writer) error {
	w, err := watch.New(opts.suitePath, 0)
	if err != nil {
		return err
	}
	defer w.Close()

	runOnce := func(ctx context.Context) {
		err := executeEval(ctx, cfg, opts, out)
		if err != nil && !errors.Is(err, exitcode.ErrTasksFailed) {
			fmt.Fprintf(out, "%s %v\n", color.RedString("Error:"), err)
		}
		fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)\n", w.Path())
	}

	runOnce(ctx)
	return w.Run(ctx, runOnce)
}
