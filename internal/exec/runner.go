package exec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// Start launches a command with piped stdin and stdout. Stderr is buffered.
func (r *ExecRunner) Start(ctx context.Context, workDir string, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &syncBuffer{}
	cmd.Stderr = stderr
	// Grandchildren holding stderr open must not block Wait forever.
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pipeProcess{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout), stderr: stderr}, nil
}

// LookPath resolves an executable name against PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

type pipeProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *syncBuffer

	waitOnce sync.Once
	waitErr  error
}

func (p *pipeProcess) Send(msg []byte) error {
	line := make([]byte, 0, len(msg)+1)
	line = append(line, msg...)
	line = append(line, '\n')
	_, err := p.stdin.Write(line)
	return err
}

func (p *pipeProcess) Receive() ([]byte, error) {
	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return nil, io.EOF
		}
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func (p *pipeProcess) Stderr() []byte {
	return p.stderr.Bytes()
}

func (p *pipeProcess) Close() error {
	p.stdin.Close()
	return p.wait()
}

func (p *pipeProcess) Kill() error {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wait()
	return nil
}

func (p *pipeProcess) wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes os/exec makes
// while the owner reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
