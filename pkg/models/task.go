package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TestCase is a single literal input/output pair used to check generated code.
type TestCase struct {
	// Args are the positional arguments passed to the function, in order.
	Args []any `json:"args" yaml:"args"`
	// Expected is the value the function must return for Args.
	Expected any `json:"expected" yaml:"expected"`
}

// Task is a prompt plus the function it should produce and the cases that
// check it. Tasks are built once and never mutated.
type Task struct {
	// Name identifies the task on the command line and in history.
	Name string `json:"name" yaml:"name"`
	// Prompt is the natural-language request sent to the code generator.
	Prompt string `json:"prompt" yaml:"prompt"`
	// Function is the top-level function the generated code must define.
	Function string `json:"function" yaml:"function"`
	// Language selects the runtime. Empty means Python.
	Language Language `json:"language,omitempty" yaml:"language,omitempty"`
	// Tests are checked in order; the first mismatch fails the task.
	Tests []TestCase `json:"tests" yaml:"tests"`
}

// Validate checks that the task can be evaluated.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if t.Function == "" {
		return errors.New("function is required")
	}
	if !identPattern.MatchString(t.Function) {
		return fmt.Errorf("function %q is not a valid identifier", t.Function)
	}
	if !t.Language.OrDefault().Valid() {
		return fmt.Errorf("unknown language %q", t.Language)
	}
	return nil
}

// DisplayName returns the task name, falling back to the function name.
func (t Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Function
}

// FormatCall renders a call expression such as add(1, 2) for messages.
func FormatCall(function string, args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return fmt.Sprintf("%s(%s)", function, strings.Join(parts, ", "))
}

// FormatValue renders a literal value as JSON, which reads naturally for
// strings, numbers, lists and maps.
func FormatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
