package exec

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := NewRunner().LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_Run(t *testing.T) {
	requireSh(t)

	out, err := NewRunner().Run(context.Background(), "", "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q, want %q", out, "hello")
	}
}

func TestExecRunner_StartExchangesLines(t *testing.T) {
	requireSh(t)

	// Echo each line back with a prefix; report on stderr once stdin closes.
	script := `while IFS= read -r line; do echo "got:$line"; done; echo done >&2`
	p, err := NewRunner().Start(context.Background(), "", "sh", "-c", script)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, msg := range []string{"one", "two"} {
		if err := p.Send([]byte(msg)); err != nil {
			t.Fatalf("Send(%q) failed: %v", msg, err)
		}
		line, err := p.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(line) != "got:"+msg {
			t.Errorf("Receive = %q, want %q", line, "got:"+msg)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if strings.TrimSpace(string(p.Stderr())) != "done" {
		t.Errorf("stderr = %q, want %q", p.Stderr(), "done")
	}
}

func TestExecRunner_StartReceiveEOF(t *testing.T) {
	requireSh(t)

	p, err := NewRunner().Start(context.Background(), "", "sh", "-c", "exit 0")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Close()

	if _, err := p.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("Receive error = %v, want io.EOF", err)
	}
}

func TestExecRunner_StartKill(t *testing.T) {
	requireSh(t)

	p, err := NewRunner().Start(context.Background(), "", "sh", "-c", "sleep 5")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Kill()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Kill did not return")
	}
}

func TestExecRunner_StartMissingBinary(t *testing.T) {
	_, err := NewRunner().Start(context.Background(), "", "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
