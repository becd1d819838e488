package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codeharness/internal/config"
	"github.com/ShayCichocki/codeharness/internal/exitcode"
	"github.com/ShayCichocki/codeharness/internal/state"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

// staleRunAge is how long a run may stay "running" before it is treated
// as abandoned.
const staleRunAge = 6 * time.Hour

var (
	historyLimit    int
	historyShowCode bool
	purgeOlderThan  string
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show recorded evaluation runs",
	Long: `List recorded runs, newest first, or show the task results of one run.

Runs are recorded when eval is given --record or history.enabled is set
in the configuration. RUN_ID may be any unique prefix of a run ID.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPurge,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyShowCode, "code", false, "Print the generated code of each task")
	historyPurgeCmd.Flags().StringVar(&purgeOlderThan, "older-than", "720h", "Delete runs started before this age (e.g. 72h, 30d)")
	historyCmd.AddCommand(historyPurgeCmd)
}

// openHistory opens and migrates the configured history database.
func openHistory(cfg *config.Config) (*state.DB, error) {
	var db *state.DB
	var err error
	if cfg.History.DBPath == "" {
		db, err = state.OpenGlobal()
	} else {
		db, err = openHistoryAt(cfg.History.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	slog.Debug("history database opened", "path", db.Path())

	if n, err := db.MarkInterrupted(staleRunAge); err != nil {
		slog.Warn("failed to mark interrupted runs", "error", err)
	} else if n > 0 {
		slog.Info("marked abandoned runs as interrupted", "count", n)
	}
	return db, nil
}

func openHistoryAt(path string) (*state.DB, error) {
	db, err := state.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		run, err := db.FindRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		records, err := db.ListTaskResults(run.ID)
		if err != nil {
			return err
		}
		renderRun(out, run, records, historyShowCode)
		return nil
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs. Use 'codeharness eval --record' to record one.")
		return nil
	}
	fmt.Fprintln(out, renderRunsTable(runs, time.Now()))
	return nil
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	age, err := parseAge(purgeOlderThan)
	if err != nil {
		return exitcode.Usage(err)
	}

	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PurgeOldRuns(age)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs older than %s\n", n, purgeOlderThan)
	return nil
}

// parseAge accepts Go durations plus a whole-day suffix such as 30d.
func parseAge(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q: %w", s, err)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q: %w", s, err)
		}
	}
	if d <= 0 {
		return 0, errors.New("age must be positive")
	}
	return d, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	passStyle   = cellStyle.Foreground(lipgloss.Color("2"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("1"))
	dimStyle    = cellStyle.Foreground(lipgloss.Color("8"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(state.RunPassed):
		return passStyle
	case string(state.RunFailed), string(models.TaskStatusError):
		return failStyle
	case string(state.RunInterrupted), string(models.TaskStatusSkipped):
		return dimStyle
	default:
		return cellStyle
	}
}

// renderRunsTable renders the run list. The status column is colored.
func renderRunsTable(runs []state.Run, now time.Time) string {
	const statusCol = 2

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		suiteName := r.Suite
		if r.DryRun {
			suiteName += " (dry run)"
		}
		rows = append(rows, []string{
			id,
			formatDuration(now.Sub(r.StartedAt)) + " ago",
			string(r.Status),
			suiteName,
			r.Model,
			fmt.Sprintf("%d/%d", r.Passed, r.Total()),
			formatNumber(r.InputTokens + r.OutputTokens),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "STARTED", "STATUS", "SUITE", "MODEL", "PASSED", "TOKENS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][statusCol])
			}
			return cellStyle
		})
	return t.String()
}

// renderRun prints one run's header and its task results.
func renderRun(w io.Writer, run *state.Run, records []state.TaskRecord, showCode bool) {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "  Suite: %s\n", run.Suite)
	fmt.Fprintf(w, "  Provider: %s (%s)\n", run.Provider, run.Model)
	fmt.Fprintf(w, "  Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  Status: %s\n", run.Status)
	fmt.Fprintf(w, "  Results: %d passed, %d failed, %d errors, %d skipped\n",
		run.Passed, run.Failed, run.Errored, run.Skipped)

	if len(records) == 0 {
		return
	}

	const statusCol = 1
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.TaskName,
			string(rec.Status),
			string(rec.Language),
			rec.Duration.Round(time.Millisecond).String(),
			rec.Error,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("TASK", "STATUS", "LANGUAGE", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][statusCol])
			}
			return cellStyle
		})
	fmt.Fprintln(w)
	fmt.Fprintln(w, t.String())

	if showCode {
		for _, rec := range records {
			if rec.Code == "" {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n%s\n", rec.TaskName, strings.TrimRight(rec.Code, "\n"))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		result.WriteString(",")
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
