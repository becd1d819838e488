// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Process is a started command that exchanges newline-delimited messages
// over its stdin and stdout.
type Process interface {
	// Send writes msg followed by a newline to the process's stdin.
	Send(msg []byte) error
	// Receive reads the next line from stdout, without its newline. It
	// returns io.EOF once stdout is closed.
	Receive() ([]byte, error)
	// Stderr returns everything the process has written to stderr so far.
	Stderr() []byte
	// Close closes stdin and waits for the process to exit.
	Close() error
	// Kill terminates the process and waits for it.
	Kill() error
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// Start launches a long-lived command with piped stdin and stdout. The
	// process is killed when ctx is done.
	Start(ctx context.Context, workDir string, name string, args ...string) (Process, error)

	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
}
