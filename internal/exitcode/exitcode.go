// Package exitcode maps command outcomes to process exit statuses.
package exitcode

import (
	"errors"
	"os"
	"strings"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates every task passed or was skipped
	Success = 0

	// GeneralError indicates a failed task or a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2
)

// ErrTasksFailed is returned by eval when at least one task failed.
// The per-task errors have already been reported.
var ErrTasksFailed = errors.New("one or more tasks failed")

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// Usage marks err as a usage or configuration error.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var ue *usageError
	if errors.As(err, &ue) {
		return UsageError
	}

	// Cobra reports flag and argument problems as plain errors.
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "unknown shorthand flag") || strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "flag needs an argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Every task passed or was skipped"
	case GeneralError:
		return "A task failed, or a general error occurred"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	default:
		return "Unknown error"
	}
}
