// Package suite loads task definitions: the built-in suite embedded in the
// binary and user-supplied YAML suite files.
package suite

import (
	_ "embed"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Suite is an ordered list of tasks loaded from one source.
type Suite struct {
	// Name describes where the suite came from.
	Name string `yaml:"name"`
	// Tasks are evaluated in the order listed.
	Tasks []models.Task `yaml:"tasks"`
}

// Builtin returns the embedded default suite.
func Builtin() (*Suite, error) {
	s, err := Parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("parse builtin suite: %w", err)
	}
	return s, nil
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// LoadOrBuiltin loads the suite at path, or the builtin suite when path is empty.
func LoadOrBuiltin(path string) (*Suite, error) {
	if path == "" {
		return Builtin()
	}
	return Load(path)
}

// Parse decodes suite YAML and validates every task.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Tasks) == 0 {
		return nil, fmt.Errorf("suite has no tasks")
	}

	seen := make(map[string]bool, len(s.Tasks))
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if t.Name == "" {
			t.Name = t.Function
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i+1, t.DisplayName(), err)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate task name %q", t.Name)
		}
		seen[t.Name] = true
		for j, tc := range t.Tests {
			if tc.Args == nil {
				t.Tests[j].Args = []any{}
			}
		}
	}
	return &s, nil
}

// Filter returns the tasks whose names are listed, in suite order.
// An empty names list returns all tasks.
func (s *Suite) Filter(names []string) ([]models.Task, error) {
	if len(names) == 0 {
		return s.Tasks, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []models.Task
	for _, t := range s.Tasks {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			return nil, fmt.Errorf("unknown task %q", n)
		}
	}
	return out, nil
}
