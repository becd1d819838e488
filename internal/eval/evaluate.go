// Package eval generates code for tasks, executes it, and checks the
// defined function against each task's literal test cases.
package eval

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/codeharness/internal/runtime"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

// MismatchError reports a test case whose result differed from the
// expected value.
type MismatchError struct {
	Function string
	Args     []any
	Expected any
	Actual   any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("For %s, expected %s but got %s",
		models.FormatCall(e.Function, e.Args),
		models.FormatValue(e.Expected),
		models.FormatValue(e.Actual))
}

// CaseError reports a test case whose call failed before a result could be
// compared.
type CaseError struct {
	Function string
	Args     []any
	Err      error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("For %s: %v", models.FormatCall(e.Function, e.Args), e.Err)
}

func (e *CaseError) Unwrap() error { return e.Err }

// EvaluateCode executes code in a fresh namespace, looks up the task's
// function and checks every test case in order. It returns nil when all
// cases match, a *MismatchError for the first wrong result, a *CaseError
// when a call fails, or the runtime's error when the code cannot be loaded
// or does not define the function.
func EvaluateCode(ctx context.Context, rt runtime.Runtime, code string, task models.Task) error {
	ns, err := rt.Exec(ctx, code)
	if err != nil {
		return err
	}
	defer ns.Close()

	fn, err := ns.Lookup(task.Function)
	if err != nil {
		return err
	}

	for _, tc := range task.Tests {
		actual, err := fn.Call(ctx, tc.Args)
		if err != nil {
			return &CaseError{Function: task.Function, Args: tc.Args, Err: err}
		}

		ok, err := Compare(tc.Expected, actual)
		if err != nil {
			return &CaseError{
				Function: task.Function,
				Args:     tc.Args,
				Err:      &runtime.CodeError{Phase: runtime.PhaseResult, Message: err.Error()},
			}
		}
		if !ok {
			return &MismatchError{
				Function: task.Function,
				Args:     tc.Args,
				Expected: tc.Expected,
				Actual:   actual,
			}
		}
	}
	return nil
}
