package api

import (
	"context"
	"testing"
	"time"
)

func TestWithRateLimit_NonPositiveReturnsInner(t *testing.T) {
	inner := GeneratorFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		return &Completion{Text: "x"}, nil
	})
	for _, rps := range []float64{0, -1} {
		if _, ok := WithRateLimit(inner, rps).(*RateLimitedGenerator); ok {
			t.Errorf("rps %v should not wrap the generator", rps)
		}
	}
}

func TestRateLimitedGenerator_BlocksUntilAdmitted(t *testing.T) {
	calls := 0
	inner := GeneratorFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		calls++
		return &Completion{Text: "ok"}, nil
	})
	g := WithRateLimit(inner, 1)

	if _, err := g.Generate(context.Background(), "p"); err != nil {
		t.Fatalf("first call should be admitted immediately: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(ctx, "p"); err == nil {
		t.Fatal("second call within the same second should not be admitted before the deadline")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRateLimitedGenerator_AllowsConfiguredRate(t *testing.T) {
	inner := GeneratorFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		return &Completion{Text: "ok"}, nil
	})
	g := WithRateLimit(inner, 100)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := g.Generate(ctx, "p")
		cancel()
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}
