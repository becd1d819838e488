package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

var packageClause = regexp.MustCompile(`(?m)^\s*package\s+([A-Za-z_][A-Za-z0-9_]*)`)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// GoRuntime executes generated Go source with an embedded interpreter.
// Every Exec creates a new interpreter, which is the namespace.
type GoRuntime struct {
	timeout time.Duration
}

// NewGoRuntime creates a Go runtime whose execs and calls are bounded by timeout.
func NewGoRuntime(timeout time.Duration) *GoRuntime {
	return &GoRuntime{timeout: timeout}
}

// Language implements Runtime.
func (g *GoRuntime) Language() models.Language {
	return models.LanguageGo
}

// Exec evaluates the source in a fresh interpreter with the standard
// library available.
func (g *GoRuntime) Exec(ctx context.Context, code string) (ns Namespace, err error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			ns, err = nil, &CodeError{Phase: PhaseExec, Message: fmt.Sprint(r)}
		}
	}()

	if _, err := i.EvalWithContext(ctx, code); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &CodeError{Phase: PhaseExec, Message: "timed out"}
		}
		return nil, &CodeError{Phase: PhaseExec, Message: err.Error()}
	}

	pkg := ""
	if m := packageClause.FindStringSubmatch(code); m != nil && m[1] != "main" {
		pkg = m[1]
	}
	return &goNamespace{interp: i, pkg: pkg, timeout: g.timeout}, nil
}

type goNamespace struct {
	interp  *interp.Interpreter
	pkg     string
	timeout time.Duration
}

func (n *goNamespace) Lookup(name string) (Func, error) {
	candidates := []string{name}
	if n.pkg != "" {
		candidates = []string{n.pkg + "." + name, name}
	}

	for _, expr := range candidates {
		v, ok := n.eval(expr)
		if !ok {
			continue
		}
		if v.Kind() != reflect.Func || v.IsNil() {
			return nil, undefined(name)
		}
		return &goFunc{name: name, fn: v, timeout: n.timeout}, nil
	}
	return nil, undefined(name)
}

func (n *goNamespace) eval(expr string) (v reflect.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	v, err := n.interp.Eval(expr)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}

func (n *goNamespace) Close() error {
	n.interp = nil
	return nil
}

type goFunc struct {
	name    string
	fn      reflect.Value
	timeout time.Duration
}

type callOutcome struct {
	result any
	err    error
}

func (f *goFunc) Call(ctx context.Context, args []any) (any, error) {
	in, err := convertArgs(f.fn.Type(), args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, f.timeout)
	defer cancel()

	// Interpreted code cannot be preempted; a call that never returns is
	// abandoned when the deadline passes.
	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callOutcome{err: &CodeError{Phase: PhaseCall, Message: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		result, err := collectResults(f.fn.Type(), f.fn.Call(in))
		done <- callOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &CodeError{Phase: PhaseCall, Message: "timed out"}
		}
		return nil, ctx.Err()
	}
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, &CodeError{Phase: PhaseCall, Message: fmt.Sprintf("function takes at least %d arguments, got %d", n-1, len(args))}
		}
	} else if len(args) != n {
		return nil, &CodeError{Phase: PhaseCall, Message: fmt.Sprintf("function takes %d arguments, got %d", n, len(args))}
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := convertValue(a, pt)
		if err != nil {
			return nil, &CodeError{Phase: PhaseCall, Message: fmt.Sprintf("argument %d: %v", i+1, err)}
		}
		in[i] = v
	}
	return in, nil
}

// convertValue maps a JSON-shaped literal onto a parameter type by
// round-tripping it through encoding/json.
func convertValue(a any, t reflect.Type) (reflect.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", data, t)
	}
	return ptr.Elem(), nil
}

// collectResults drops a trailing error result, surfacing it when non-nil.
// A single remaining value is returned as-is; several are returned as a list.
func collectResults(t reflect.Type, out []reflect.Value) (any, error) {
	if n := t.NumOut(); n > 0 && t.Out(n-1) == errorType {
		if errVal := out[n-1]; !errVal.IsNil() {
			return nil, &CodeError{Phase: PhaseCall, Message: errVal.Interface().(error).Error()}
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		values := make([]any, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		return values, nil
	}
}
