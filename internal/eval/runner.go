package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/codeharness/internal/api"
	"github.com/ShayCichocki/codeharness/internal/runtime"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

// GeneratorFactory builds the code generator. The runner calls it at most
// once, on the first task that needs it, so dry runs never require
// credentials.
type GeneratorFactory func() (api.Generator, error)

// Recorder persists task results as they complete.
type Recorder interface {
	RecordTaskResult(ctx context.Context, result models.TaskResult) error
}

// Recorders fans each result out to every non-nil recorder. It returns nil
// when none are given.
func Recorders(recs ...Recorder) Recorder {
	var multi multiRecorder
	for _, r := range recs {
		if r != nil {
			multi = append(multi, r)
		}
	}
	switch len(multi) {
	case 0:
		return nil
	case 1:
		return multi[0]
	default:
		return multi
	}
}

type multiRecorder []Recorder

func (m multiRecorder) RecordTaskResult(ctx context.Context, result models.TaskResult) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordTaskResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options configures a Runner.
type Options struct {
	// DryRun prints each task and skips generation and execution.
	DryRun bool
	// Out receives the human-readable report. Defaults to os.Stdout.
	Out io.Writer
	// Recorder, when set, receives every task result.
	Recorder Recorder
	// Verbose adds per-task model and token usage lines.
	Verbose bool
}

// Runner evaluates tasks one at a time.
type Runner struct {
	newGenerator GeneratorFactory
	runtimes     *runtime.Registry
	opts         Options
	out          io.Writer

	gen     api.Generator
	genErr  error
	genDone bool

	now func() time.Time
}

// NewRunner creates a runner.
func NewRunner(newGenerator GeneratorFactory, runtimes *runtime.Registry, opts Options) *Runner {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		newGenerator: newGenerator,
		runtimes:     runtimes,
		opts:         opts,
		out:          out,
		now:          time.Now,
	}
}

func (r *Runner) generator() (api.Generator, error) {
	if !r.genDone {
		r.genDone = true
		if r.newGenerator == nil {
			r.genErr = errors.New("no code generator configured")
		} else {
			r.gen, r.genErr = r.newGenerator()
		}
	}
	return r.gen, r.genErr
}

// RunTask evaluates a single task and never panics. Errors are reported in
// the result rather than returned.
func (r *Runner) RunTask(ctx context.Context, task models.Task) (result models.TaskResult) {
	result = models.TaskResult{Task: task, StartedAt: r.now()}
	defer func() {
		if p := recover(); p != nil {
			result.Status = models.TaskStatusError
			result.Error = fmt.Sprintf("internal error: %v", p)
		}
		result.Duration = r.now().Sub(result.StartedAt)
		slog.Debug("task finished", "task", task.DisplayName(), "status", result.Status, "duration", result.Duration)
	}()

	fmt.Fprintf(r.out, "\nTask: %s\n", task.Prompt)

	if r.opts.DryRun {
		fmt.Fprintln(r.out, "Dry run; skipping API call")
		result.Status = models.TaskStatusSkipped
		return result
	}

	fail := func(status models.TaskStatus, err error) models.TaskResult {
		result.Status = status
		result.Error = err.Error()
		return result
	}

	rt, err := r.runtimes.Get(task.Language)
	if err != nil {
		return fail(models.TaskStatusError, err)
	}

	gen, err := r.generator()
	if err != nil {
		return fail(models.TaskStatusError, err)
	}

	completion, err := gen.Generate(ctx, task.Prompt)
	if err != nil {
		return fail(models.TaskStatusError, err)
	}
	result.Model = completion.Model
	result.InputTokens = completion.InputTokens
	result.OutputTokens = completion.OutputTokens

	code := api.ExtractCode(completion.Text)
	result.Code = code
	fmt.Fprintf(r.out, "Generated code:\n%s\n", strings.TrimRight(code, "\n"))
	if r.opts.Verbose {
		fmt.Fprintf(r.out, "Model: %s, tokens: %d in / %d out\n", completion.Model, completion.InputTokens, completion.OutputTokens)
	}

	if err := EvaluateCode(ctx, rt, code, task); err != nil {
		status := models.TaskStatusFailed
		if isInfrastructure(ctx, err) {
			status = models.TaskStatusError
		}
		return fail(status, err)
	}

	result.Status = models.TaskStatusPassed
	return result
}

// isInfrastructure separates failures of the harness from failures of the
// generated code.
func isInfrastructure(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, runtime.ErrInterpreterNotFound) || errors.Is(err, runtime.ErrUnsupportedLanguage)
}

// Report summarizes a run.
type Report struct {
	Results   []models.TaskResult
	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether no task failed or errored.
func (rep *Report) OK() bool {
	for _, res := range rep.Results {
		if !res.Status.OK() {
			return false
		}
	}
	return true
}

// Counts returns the number of results in each status.
func (rep *Report) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int, 4)
	for _, res := range rep.Results {
		counts[res.Status]++
	}
	return counts
}

// Run evaluates tasks strictly in order. Every task runs regardless of
// earlier failures; each failure is printed as it happens.
func (r *Runner) Run(ctx context.Context, tasks []models.Task) *Report {
	rep := &Report{StartedAt: r.now()}

	for _, task := range tasks {
		res := r.RunTask(ctx, task)
		rep.Results = append(rep.Results, res)

		switch res.Status {
		case models.TaskStatusPassed:
			printStatus(r.out, "✓", fmt.Sprintf("%s passed (%d cases)", task.DisplayName(), len(task.Tests)), color.FgGreen)
		case models.TaskStatusFailed, models.TaskStatusError:
			printStatus(r.out, "✗", "Error: "+res.Error, color.FgRed)
		}

		if r.opts.Recorder != nil {
			if err := r.opts.Recorder.RecordTaskResult(ctx, res); err != nil {
				slog.Warn("failed to record task result", "task", task.DisplayName(), "error", err)
			}
		}
	}

	rep.Duration = r.now().Sub(rep.StartedAt)
	r.printSummary(rep)
	return rep
}

func (r *Runner) printSummary(rep *Report) {
	counts := rep.Counts()
	c := color.New(color.FgGreen)
	if !rep.OK() {
		c = color.New(color.FgRed)
	}
	summary := fmt.Sprintf("%d passed, %d failed, %d errors, %d skipped",
		counts[models.TaskStatusPassed],
		counts[models.TaskStatusFailed],
		counts[models.TaskStatusError],
		counts[models.TaskStatusSkipped])
	fmt.Fprintf(r.out, "\n%s\n", c.Sprint(summary))
}

func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
