package runtime

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ShayCichocki/codeharness/internal/exec"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

//go:embed driver.py
var pythonDriver string

// DefaultPython is the interpreter used when none is configured.
const DefaultPython = "python3"

// maxStderr caps how much interpreter stderr is quoted in errors.
const maxStderr = 2000

// closeGrace is how long Close waits for the driver to exit on its own.
const closeGrace = 2 * time.Second

// PythonRuntime executes generated Python through an external interpreter.
// Each namespace is one interpreter process running the embedded driver:
// the code is executed once, and every call runs in that same namespace.
type PythonRuntime struct {
	runner      exec.CommandRunner
	interpreter string
	timeout     time.Duration
}

// PythonConfig configures a PythonRuntime.
type PythonConfig struct {
	// Runner executes the interpreter. Defaults to exec.NewRunner().
	Runner exec.CommandRunner
	// Interpreter is the executable name or path. Defaults to python3.
	Interpreter string
	// Timeout bounds the exec and each call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// NewPythonRuntime creates a Python runtime.
func NewPythonRuntime(cfg PythonConfig) *PythonRuntime {
	runner := cfg.Runner
	if runner == nil {
		runner = exec.NewRunner()
	}
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = DefaultPython
	}
	return &PythonRuntime{runner: runner, interpreter: interpreter, timeout: cfg.Timeout}
}

// Language implements Runtime.
func (p *PythonRuntime) Language() models.Language {
	return models.LanguagePython
}

// Version reports the interpreter's version string, e.g. "Python 3.12.1".
func (p *PythonRuntime) Version(ctx context.Context) (string, error) {
	if _, err := p.runner.LookPath(p.interpreter); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInterpreterNotFound, p.interpreter)
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, "", p.interpreter, "--version")
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w", p.interpreter, err)
	}
	return strings.TrimSpace(string(out)), nil
}

type execRequest struct {
	Code string `json:"code"`
}

type callRequest struct {
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

type driverResponse struct {
	OK        bool     `json:"ok"`
	Phase     string   `json:"phase,omitempty"`
	Error     string   `json:"error,omitempty"`
	Callables []string `json:"callables,omitempty"`
	// Result is decoded with UseNumber so integers keep full precision.
	Result any `json:"result,omitempty"`
}

// Exec starts a driver process, executes the code in it and records which
// top-level names are callable. The process lives until Close.
func (p *PythonRuntime) Exec(ctx context.Context, code string) (Namespace, error) {
	if _, err := p.runner.LookPath(p.interpreter); err != nil {
		return nil, fmt.Errorf("%w: %s is not installed or not on PATH", ErrInterpreterNotFound, p.interpreter)
	}

	proc, err := p.runner.Start(ctx, "", p.interpreter, "-c", pythonDriver)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", p.interpreter, err)
	}
	s := &pythonSession{interpreter: p.interpreter, timeout: p.timeout, proc: proc}

	resp, err := s.roundTrip(ctx, execRequest{Code: code}, PhaseExec)
	if err != nil {
		s.close()
		return nil, err
	}

	callables := make(map[string]bool, len(resp.Callables))
	for _, name := range resp.Callables {
		callables[name] = true
	}
	slog.Debug("python namespace loaded", "callables", resp.Callables)

	return &pythonNamespace{session: s, callables: callables}, nil
}

// pythonSession is one driver process. It is used from one goroutine at a
// time.
type pythonSession struct {
	interpreter string
	timeout     time.Duration
	proc        exec.Process
	done        bool
}

type reply struct {
	line []byte
	err  error
}

// roundTrip sends one request and waits for its response. A timeout or a
// broken process ends the session.
func (s *pythonSession) roundTrip(ctx context.Context, req any, phase Phase) (*driverResponse, error) {
	if s.done {
		return nil, fmt.Errorf("%s driver is no longer running", s.interpreter)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode driver request: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	replies := make(chan reply, 1)
	go func() {
		if err := s.proc.Send(payload); err != nil {
			replies <- reply{err: err}
			return
		}
		line, err := s.proc.Receive()
		replies <- reply{line: line, err: err}
	}()

	var r reply
	select {
	case r = <-replies:
	case <-ctx.Done():
		s.kill()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &CodeError{Phase: phase, Message: "timed out"}
		}
		return nil, ctx.Err()
	}

	if r.err != nil {
		s.kill()
		return nil, fmt.Errorf("%s exited unexpectedly: %s", s.interpreter, tail(s.proc.Stderr()))
	}

	var resp driverResponse
	dec := json.NewDecoder(bytes.NewReader(r.line))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		s.kill()
		return nil, fmt.Errorf("invalid response from %s driver: %w", s.interpreter, err)
	}

	if !resp.OK {
		switch resp.Phase {
		case "undefined":
			return nil, undefined(resp.Error)
		case string(PhaseExec), string(PhaseCall), string(PhaseResult):
			return nil, &CodeError{Phase: Phase(resp.Phase), Message: resp.Error}
		default:
			return nil, fmt.Errorf("driver error: %s", resp.Error)
		}
	}
	return &resp, nil
}

func (s *pythonSession) kill() {
	if s.done {
		return
	}
	s.done = true
	s.proc.Kill()
}

// close ends the driver by closing its stdin, killing it if it has not
// exited within closeGrace.
func (s *pythonSession) close() {
	if s.done {
		return
	}
	s.done = true

	exited := make(chan error, 1)
	go func() { exited <- s.proc.Close() }()

	select {
	case err := <-exited:
		if err != nil {
			slog.Debug("python driver exited with error", "error", err)
		}
	case <-time.After(closeGrace):
		slog.Debug("python driver did not exit, killing it")
		s.proc.Kill()
		<-exited
	}
}

func tail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	if s == "" {
		return "(no output)"
	}
	return s
}

type pythonNamespace struct {
	session   *pythonSession
	callables map[string]bool
}

func (n *pythonNamespace) Lookup(name string) (Func, error) {
	if !n.callables[name] {
		return nil, undefined(name)
	}
	return &pythonFunc{session: n.session, name: name}, nil
}

func (n *pythonNamespace) Close() error {
	n.session.close()
	return nil
}

type pythonFunc struct {
	session *pythonSession
	name    string
}

// Call runs the function in the namespace's process. Numbers in the result
// are json.Number values.
func (f *pythonFunc) Call(ctx context.Context, args []any) (any, error) {
	if args == nil {
		args = []any{}
	}
	resp, err := f.session.roundTrip(ctx, callRequest{Function: f.name, Args: args}, PhaseCall)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}
