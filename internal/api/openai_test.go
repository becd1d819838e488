package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newOpenAIServer(t *testing.T, path, body string, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			t.Errorf("path = %q, want %q", r.URL.Path, path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestOpenAIGenerator_Completions(t *testing.T) {
	srv, got := newOpenAIServer(t, "/v1/completions", `{
		"id": "cmpl-1",
		"object": "text_completion",
		"created": 1,
		"model": "gpt-3.5-turbo-instruct",
		"choices": [{"text": "\ndef add(a, b):\n    return a + b\n", "index": 0, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 11, "total_tokens": 31}
	}`, http.StatusOK)

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator failed: %v", err)
	}

	c, err := gen.Generate(context.Background(), "Write a Python function `add`")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if c.Text != "\ndef add(a, b):\n    return a + b\n" {
		t.Errorf("Text = %q", c.Text)
	}
	if c.InputTokens != 20 || c.OutputTokens != 11 {
		t.Errorf("tokens = %d/%d, want 20/11", c.InputTokens, c.OutputTokens)
	}
	if (*got)["model"] != DefaultOpenAIModel {
		t.Errorf("model = %v, want %s", (*got)["model"], DefaultOpenAIModel)
	}
	if (*got)["prompt"] != "Write a Python function `add`" {
		t.Errorf("prompt = %v", (*got)["prompt"])
	}
	if (*got)["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("max_tokens = %v, want %d", (*got)["max_tokens"], DefaultMaxTokens)
	}
	if gen.Tracker().Calls() != 1 {
		t.Errorf("tracker calls = %d, want 1", gen.Tracker().Calls())
	}
}

func TestOpenAIGenerator_Chat(t *testing.T) {
	srv, got := newOpenAIServer(t, "/v1/chat/completions", `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "def add(a, b):\n    return a + b"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 30, "completion_tokens": 10, "total_tokens": 40}
	}`, http.StatusOK)

	gen, err := NewOpenAIGenerator(OpenAIConfig{
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/v1",
		Model:    "gpt-4o-mini",
		Endpoint: EndpointChat,
	})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator failed: %v", err)
	}

	c, err := gen.Generate(context.Background(), "Write add")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if c.Text != "def add(a, b):\n    return a + b" {
		t.Errorf("Text = %q", c.Text)
	}

	msgs, ok := (*got)["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v, want system + user", (*got)["messages"])
	}
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv, _ := newOpenAIServer(t, "/v1/completions", `{"id":"x","object":"text_completion","model":"m","choices":[],"usage":{}}`, http.StatusOK)

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator failed: %v", err)
	}

	_, err = gen.Generate(context.Background(), "Write add")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestOpenAIGenerator_ServerError(t *testing.T) {
	srv, _ := newOpenAIServer(t, "/v1/completions", `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator failed: %v", err)
	}

	_, err = gen.Generate(context.Background(), "Write add")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !retryable(err) {
		t.Errorf("503 should be retryable: %v", err)
	}
}

func TestNewOpenAIGenerator_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	_, err := NewOpenAIGenerator(OpenAIConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
	if err.Error() != "OPENAI_API_KEY environment variable not set" {
		t.Errorf("Error = %q", err.Error())
	}
}

func TestNewOpenAIGenerator_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	gen, err := NewOpenAIGenerator(OpenAIConfig{})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator failed: %v", err)
	}
	if gen.Model() != DefaultOpenAIModel {
		t.Errorf("Model = %q, want %q", gen.Model(), DefaultOpenAIModel)
	}
	if gen.endpoint != EndpointCompletions {
		t.Errorf("endpoint = %q, want %q", gen.endpoint, EndpointCompletions)
	}
	if gen.maxTokens != DefaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", gen.maxTokens, DefaultMaxTokens)
	}
}

func TestNewOpenAIGenerator_UnknownEndpoint(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "k", Endpoint: "edits"})
	if err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
}

func TestTemperature(t *testing.T) {
	if temperature(0) <= 0 {
		t.Error("zero temperature must map to a positive value so it is sent")
	}
	if temperature(0.7) != float32(0.7) {
		t.Errorf("temperature(0.7) = %v", temperature(0.7))
	}

	data, err := json.Marshal(openai.ChatCompletionRequest{Model: "m", Temperature: temperature(0)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"temperature":1e-45`) {
		t.Errorf("request = %s, want temperature 1e-45", data)
	}
}
