// Package runtime executes generated code and exposes the functions it
// defines. Every Exec produces a fresh namespace; nothing is shared between
// namespaces, and a namespace is discarded once its task is done.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

// DefaultTimeout bounds a single exec or call when none is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrFunctionUndefined is returned by Lookup when the generated code
	// does not define the requested name, or defines it as a non-callable.
	ErrFunctionUndefined = errors.New("not defined in generated code")
	// ErrInterpreterNotFound is returned when an external interpreter the
	// runtime needs is not installed.
	ErrInterpreterNotFound = errors.New("interpreter not found")
	// ErrUnsupportedLanguage is returned by Registry.Get for unknown languages.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Runtime turns source text into a Namespace.
type Runtime interface {
	// Language reports which task language this runtime executes.
	Language() models.Language
	// Exec runs code as a program and returns the resulting namespace.
	Exec(ctx context.Context, code string) (Namespace, error)
}

// Namespace holds the top-level definitions produced by executing code.
type Namespace interface {
	// Lookup returns the named function. It wraps ErrFunctionUndefined when
	// the name is absent or not callable.
	Lookup(name string) (Func, error)
	// Close releases the namespace.
	Close() error
}

// Func is a function defined by generated code.
type Func interface {
	// Call invokes the function with positional arguments. Arguments are
	// plain JSON-shaped values: numbers, strings, bools, nil, []any and
	// map[string]any.
	Call(ctx context.Context, args []any) (any, error)
}

// Phase names the step of running generated code that failed.
type Phase string

const (
	// PhaseExec covers executing the code itself (syntax errors, import errors).
	PhaseExec Phase = "exec"
	// PhaseCall covers an exception, panic or error returned from the call.
	PhaseCall Phase = "call"
	// PhaseResult covers a return value that cannot be compared.
	PhaseResult Phase = "result"
)

// CodeError reports a failure raised by the generated code rather than by
// the harness.
type CodeError struct {
	Phase   Phase
	Message string
}

func (e *CodeError) Error() string {
	switch e.Phase {
	case PhaseExec:
		return "executing generated code: " + e.Message
	case PhaseCall:
		return "generated function raised: " + e.Message
	case PhaseResult:
		return "unusable result: " + e.Message
	default:
		return e.Message
	}
}

func undefined(name string) error {
	return fmt.Errorf("function %q %w", name, ErrFunctionUndefined)
}

// Registry maps task languages to runtimes.
type Registry struct {
	runtimes map[models.Language]Runtime
}

// NewRegistry creates a registry holding the given runtimes. A later runtime
// for the same language replaces an earlier one.
func NewRegistry(runtimes ...Runtime) *Registry {
	r := &Registry{runtimes: make(map[models.Language]Runtime, len(runtimes))}
	for _, rt := range runtimes {
		r.runtimes[rt.Language()] = rt
	}
	return r
}

// Get returns the runtime for lang, defaulting an empty language to Python.
func (r *Registry) Get(lang models.Language) (Runtime, error) {
	lang = lang.OrDefault()
	rt, ok := r.runtimes[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return rt, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
