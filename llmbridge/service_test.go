package llmbridge

import (
	"context"
	"errors"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter.
type mockAdapter struct {
	name       string
	configured bool
	content    string
	usage      Usage
	failures   []error // consumed one per call before succeeding
	calls      int
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) IsConfigured() bool { return m.configured }

func (m *mockAdapter) SendRequest(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return &Response{
		ID:       "resp_test",
		Model:    req.Model,
		Provider: m.name,
		Content:  m.content,
		Usage:    m.usage,
	}, nil
}

func newMockService(t *testing.T, adapter *mockAdapter, limit *RateLimit) *Service {
	t.Helper()
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.RegisterAdapter(adapter.name, adapter, limit)
	retry := DefaultRetryPolicy()
	retry.BaseDelay = 1 // effectively immediate
	svc.retry = retry
	return svc
}

func TestServiceRequestFullSequence(t *testing.T) {
	adapter := &mockAdapter{
		name:       "mock",
		configured: true,
		content:    `{"summary": "a CLI tool", "capabilities": ["parsing"]}`,
		usage:      Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
	svc := newMockService(t, adapter, &RateLimit{RequestCap: 10, TokenCap: 10000})

	value, err := svc.Request(context.Background(), Request{
		Prompt: "describe this project",
		Schema: insightSchema,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := value.(map[string]interface{})
	if m["summary"] != "a CLI tool" {
		t.Errorf("summary = %v", m["summary"])
	}

	// Admission was recorded and usage accumulated.
	if requests, _ := svc.Limiter().InWindow("mock"); requests != 1 {
		t.Errorf("expected 1 window entry, got %d", requests)
	}
	if got := svc.UsageFor("mock"); got.TotalTokens != 30 {
		t.Errorf("usage = %+v", got)
	}
}

func TestServiceUnconfiguredAdapterFailsBeforeLimiter(t *testing.T) {
	adapter := &mockAdapter{name: "mock", configured: false}
	svc := newMockService(t, adapter, &RateLimit{RequestCap: 10})

	_, err := svc.Request(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}

	// No quota consumed, no network attempt.
	if requests, _ := svc.Limiter().InWindow("mock"); requests != 0 {
		t.Errorf("unconfigured request consumed quota: %d entries", requests)
	}
	if adapter.calls != 0 {
		t.Errorf("unconfigured adapter was invoked %d times", adapter.calls)
	}
}

func TestServiceRetriesTransientThenSucceeds(t *testing.T) {
	adapter := &mockAdapter{
		name:       "mock",
		configured: true,
		content:    `{"ok": true}`,
		failures: []error{
			ErrorFromStatusCode(503, "overloaded", "mock", ""),
			ErrorFromStatusCode(429, "rate limit", "mock", ""),
		},
	}
	svc := newMockService(t, adapter, nil)

	if _, err := svc.Request(context.Background(), Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", adapter.calls)
	}
}

func TestServicePropagatesNonRetryable(t *testing.T) {
	adapter := &mockAdapter{
		name:       "mock",
		configured: true,
		failures:   []error{ErrorFromStatusCode(401, "invalid key", "mock", "")},
	}
	svc := newMockService(t, adapter, nil)

	_, err := svc.Request(context.Background(), Request{Prompt: "hi"})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T", err)
	}
	if adapter.calls != 1 {
		t.Errorf("non-retryable error was retried: %d calls", adapter.calls)
	}
}

func TestServiceValidationErrorNotRetried(t *testing.T) {
	adapter := &mockAdapter{
		name:       "mock",
		configured: true,
		content:    `{"wrong": "shape"}`,
	}
	svc := newMockService(t, adapter, nil)

	_, err := svc.Request(context.Background(), Request{
		Prompt: "hi",
		Schema: insightSchema,
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	// Parsing happens after the exchange; the same malformed text would
	// come back again, so the orchestrator sends exactly once.
	if adapter.calls != 1 {
		t.Errorf("validation failure was retried: %d calls", adapter.calls)
	}
}

func TestServiceUnknownProvider(t *testing.T) {
	svc := newMockService(t, &mockAdapter{name: "mock", configured: true}, nil)

	_, err := svc.Request(context.Background(), Request{Prompt: "hi", Provider: "nope"})
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestServiceGenerateStructured(t *testing.T) {
	adapter := &mockAdapter{
		name:       "mock",
		configured: true,
		content:    `{"summary": "ok"}`,
	}
	svc := newMockService(t, adapter, nil)

	value, err := svc.GenerateStructured(context.Background(), "summarize", insightSchema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.(map[string]interface{})["summary"] != "ok" {
		t.Errorf("unexpected value: %#v", value)
	}
}
