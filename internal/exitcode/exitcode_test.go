package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"tasks failed", ErrTasksFailed, GeneralError},
		{"wrapped tasks failed", fmt.Errorf("eval: %w", ErrTasksFailed), GeneralError},
		{"usage", Usage(errors.New("--watch requires --suite")), UsageError},
		{"wrapped usage", fmt.Errorf("config: %w", Usage(errors.New("bad provider"))), UsageError},
		{"cobra unknown flag", errors.New("unknown flag: --bogus"), UsageError},
		{"cobra unknown command", errors.New(`unknown command "nope" for "codeharness"`), UsageError},
		{"cobra arg count", errors.New("accepts at most 1 arg(s), received 2"), UsageError},
		{"cobra invalid argument", errors.New(`invalid argument "x" for "--limit" flag`), UsageError},
		{"general", errors.New("open history db: permission denied"), GeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineExitCode(tt.err))
		})
	}
}

func TestUsage(t *testing.T) {
	assert.Nil(t, Usage(nil))

	base := errors.New("bad flag")
	err := Usage(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "bad flag", err.Error())
}

func TestGetExitCodeDescription(t *testing.T) {
	assert.Equal(t, "Every task passed or was skipped", GetExitCodeDescription(Success))
	assert.Contains(t, GetExitCodeDescription(UsageError), "Usage")
	assert.Equal(t, "Unknown error", GetExitCodeDescription(42))
}
