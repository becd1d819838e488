package eval

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/codeharness/internal/runtime"
	"github.com/ShayCichocki/codeharness/pkg/models"
)

type fakeFunc func(args []any) (any, error)

func (f fakeFunc) Call(ctx context.Context, args []any) (any, error) { return f(args) }

// fakeRuntime ignores the code and exposes a fixed set of functions.
type fakeRuntime struct {
	lang    models.Language
	funcs   map[string]fakeFunc
	execErr error
	codes   []string
	closed  int
}

func (r *fakeRuntime) Language() models.Language {
	if r.lang == "" {
		return models.LanguagePython
	}
	return r.lang
}

func (r *fakeRuntime) Exec(ctx context.Context, code string) (runtime.Namespace, error) {
	r.codes = append(r.codes, code)
	if r.execErr != nil {
		return nil, r.execErr
	}
	return &fakeNamespace{rt: r}, nil
}

type fakeNamespace struct {
	rt *fakeRuntime
}

func (n *fakeNamespace) Lookup(name string) (runtime.Func, error) {
	fn, ok := n.rt.funcs[name]
	if !ok {
		return nil, fmt.Errorf("function %q %w", name, runtime.ErrFunctionUndefined)
	}
	return fn, nil
}

func (n *fakeNamespace) Close() error {
	n.rt.closed++
	return nil
}

type memRecorder struct {
	results []models.TaskResult
	err     error
}

func (m *memRecorder) RecordTaskResult(ctx context.Context, res models.TaskResult) error {
	m.results = append(m.results, res)
	return m.err
}
