// Package llmbridge is the LLM request orchestration engine behind the
// codesight analysis tools. It turns a logical "ask the model" request into
// a quota-bounded, retried, provider-agnostic network exchange, and turns
// the model's free-form reply back into validated structured data.
//
// # Architecture
//
// The engine composes four leaf components under one orchestrator:
//
//   - RateLimiter: sliding-window request/token budgets per provider
//   - RetryPolicy / Retry: pattern-classified transient-failure recovery
//     with exponential backoff
//   - ProviderAdapter variants: OpenAI, Anthropic, GitHub Copilot (native
//     wire formats) and a gollm-backed adapter for local Ollama models
//   - Parse: three-tier extraction (direct JSON, embedded JSON,
//     natural-language fallback) with JSON Schema validation
//
// # Quick start
//
//	svc, err := llmbridge.NewService(llmbridge.Config{
//	    Providers: map[string]llmbridge.ProviderConfig{
//	        "anthropic": {
//	            Kind:              llmbridge.ProviderAnthropic,
//	            APIKey:            os.Getenv("ANTHROPIC_API_KEY"),
//	            RequestsPerMinute: 50,
//	            TokensPerMinute:   40000,
//	        },
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := svc.Request(ctx, llmbridge.Request{
//	    Prompt: "Summarize the architecture of this package",
//	})
//
// Structured output with schema enforcement:
//
//	insights, err := svc.GenerateStructured(ctx, prompt, map[string]interface{}{
//	    "type":     "object",
//	    "required": []interface{}{"summary"},
//	    "properties": map[string]interface{}{
//	        "summary":      map[string]interface{}{"type": "string"},
//	        "capabilities": map[string]interface{}{"type": "array"},
//	    },
//	})
//
// Providers without a configured rate limit pass through unmetered. This is
// default-open on purpose so test doubles and local models are never
// blocked, but it means a misspelled provider name silently bypasses quota
// enforcement.
package llmbridge
