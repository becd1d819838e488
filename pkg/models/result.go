package models

import "time"

// TaskStatus represents the outcome of evaluating a task.
type TaskStatus string

const (
	// TaskStatusPassed indicates every test case matched.
	TaskStatusPassed TaskStatus = "passed"
	// TaskStatusFailed indicates the generated code ran but a check failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusError indicates the task could not be evaluated at all,
	// e.g. a missing credential or a failed API call.
	TaskStatusError TaskStatus = "error"
	// TaskStatusSkipped indicates a dry run.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPassed, TaskStatusFailed, TaskStatusError, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// OK reports whether the status counts as success for the run.
func (s TaskStatus) OK() bool {
	return s == TaskStatusPassed || s == TaskStatusSkipped
}

// TaskResult holds what happened when a task was evaluated.
type TaskResult struct {
	// Task is the task that was evaluated.
	Task Task `json:"task"`
	// Status is the outcome.
	Status TaskStatus `json:"status"`
	// Code is the code that was executed, if generation succeeded.
	Code string `json:"code,omitempty"`
	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
	// Model is the model that produced the code.
	Model string `json:"model,omitempty"`
	// InputTokens and OutputTokens report API usage for this task.
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
	// StartedAt is when evaluation began.
	StartedAt time.Time `json:"started_at"`
	// Duration is how long evaluation took.
	Duration time.Duration `json:"duration"`
}
