package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

// RunStatus represents the status of an evaluation run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunPassed      RunStatus = "passed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one invocation of eval over a list of tasks.
type Run struct {
	ID         string     `json:"id"`
	Suite      string     `json:"suite"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	DryRun     bool       `json:"dry_run"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	// Counts are derived from task_results.
	Passed       int   `json:"passed"`
	Failed       int   `json:"failed"`
	Errored      int   `json:"errored"`
	Skipped      int   `json:"skipped"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns the number of recorded tasks.
func (r *Run) Total() int {
	return r.Passed + r.Failed + r.Errored + r.Skipped
}

// TaskRecord is a persisted task result.
type TaskRecord struct {
	ID           int64             `json:"id"`
	RunID        string            `json:"run_id"`
	TaskName     string            `json:"task_name"`
	Function     string            `json:"function"`
	Language     models.Language   `json:"language"`
	Status       models.TaskStatus `json:"status"`
	Code         string            `json:"code"`
	Error        string            `json:"error"`
	Model        string            `json:"model"`
	InputTokens  int64             `json:"input_tokens"`
	OutputTokens int64             `json:"output_tokens"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
}

// CreateRun inserts a run. An empty ID is filled with a new UUID and an
// empty status with RunRunning.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, suite, provider, model, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Suite, r.Provider, r.Model, r.DryRun, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (db *DB) FinishRun(id string, status RunStatus, finishedAt time.Time) error {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}
	return nil
}

// RecordTaskResult appends a task result to a run.
func (db *DB) RecordTaskResult(ctx context.Context, runID string, res models.TaskResult) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_results (run_id, task_name, function, language, status, code, error, model,
			input_tokens, output_tokens, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, res.Task.DisplayName(), res.Task.Function, string(res.Task.Language.OrDefault()),
		string(res.Status), res.Code, res.Error, res.Model,
		res.InputTokens, res.OutputTokens, formatTime(res.StartedAt), res.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record task result: %w", err)
	}
	return nil
}

const runColumns = `
	r.id, r.suite, r.provider, r.model, r.dry_run, r.status, r.started_at, r.finished_at,
	COALESCE(SUM(t.status = 'passed'), 0),
	COALESCE(SUM(t.status = 'failed'), 0),
	COALESCE(SUM(t.status = 'error'), 0),
	COALESCE(SUM(t.status = 'skipped'), 0),
	COALESCE(SUM(t.input_tokens), 0),
	COALESCE(SUM(t.output_tokens), 0)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.Suite, &r.Provider, &r.Model, &r.DryRun, &r.Status, &startedAt, &finishedAt,
		&r.Passed, &r.Failed, &r.Errored, &r.Skipped, &r.InputTokens, &r.OutputTokens)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when no run matches.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT `+runColumns+`
		FROM runs r LEFT JOIN task_results t ON t.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// FindRun resolves a full run ID or a unique prefix of one. It returns
// nil, nil when nothing matches.
func (db *DB) FindRun(prefix string) (*Run, error) {
	if prefix == "" {
		return nil, fmt.Errorf("find run: empty id")
	}

	rows, err := db.Query(`SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("find run: %w", err)
	}
	rows.Close()

	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return db.GetRun(ids[0])
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListRuns lists the most recent runs, newest first. A limit of zero or
// less lists every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.Query(`
		SELECT `+runColumns+`
		FROM runs r LEFT JOIN task_results t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListTaskResults lists the results of a run in the order they were recorded.
func (db *DB) ListTaskResults(runID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, task_name, function, language, status, COALESCE(code, ''), COALESCE(error, ''),
			COALESCE(model, ''), input_tokens, output_tokens, started_at, duration_ms
		FROM task_results WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list task results: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var startedAt string
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.TaskName, &rec.Function, &rec.Language, &rec.Status,
			&rec.Code, &rec.Error, &rec.Model, &rec.InputTokens, &rec.OutputTokens, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		rec.StartedAt, _ = parseTime(startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkInterrupted moves runs still marked running that started more than
// staleAfter ago to RunInterrupted. Such runs belong to processes that
// exited without finishing them.
func (db *DB) MarkInterrupted(staleAfter time.Duration) (int64, error) {
	cutoff := time.Now().Add(-staleAfter)

	result, err := db.Exec(`
		UPDATE runs SET status = ? WHERE status = ? AND started_at < ?
	`, string(RunInterrupted), string(RunRunning), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

// Recorder binds a run so results can be recorded as they complete.
type Recorder struct {
	db    *DB
	runID string
}

// NewRecorder returns a recorder that appends results to runID.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// RecordTaskResult implements the eval runner's recorder hook.
func (r *Recorder) RecordTaskResult(ctx context.Context, res models.TaskResult) error {
	return r.db.RecordTaskResult(ctx, r.runID, res)
}
