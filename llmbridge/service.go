package llmbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Config assembles a Service. It is constructed explicitly and passed in;
// the engine keeps no process-wide mutable configuration.
type Config struct {
	// Providers maps a provider name to its configuration.
	Providers map[string]ProviderConfig

	// DefaultProvider names the provider used when a request does not
	// pick one. Defaults to the sole entry when only one is configured.
	DefaultProvider string

	// Retry overrides the default retry policy when non-zero.
	Retry *RetryPolicy

	// Debug enables request-flow logging.
	Debug bool
}

// Service is the orchestrator: one call turns a logical request into a
// quota-checked, retried, provider-dispatched exchange and the reply into
// validated structured data.
type Service struct {
	adapters        map[string]ProviderAdapter
	defaultProvider string
	limiter         *RateLimiter
	retry           RetryPolicy
	debug           bool

	mu    sync.RWMutex
	usage map[string]Usage
}

// NewService builds a Service from cfg. Every configured provider goes
// through the factory, so a missing credential fails here, at selection
// time, not on first use.
func NewService(cfg Config) (*Service, error) {
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	s := &Service{
		adapters:        make(map[string]ProviderAdapter),
		defaultProvider: cfg.DefaultProvider,
		limiter:         NewRateLimiter(),
		retry:           retry,
		debug:           cfg.Debug,
		usage:           make(map[string]Usage),
	}

	for name, pc := range cfg.Providers {
		adapter, err := NewAdapter(pc)
		if err != nil {
			return nil, err
		}
		s.adapters[name] = adapter
		if pc.RequestsPerMinute > 0 {
			s.limiter.SetLimit(name, RateLimit{
				RequestCap: pc.RequestsPerMinute,
				TokenCap:   pc.TokensPerMinute,
			})
		}
	}

	if s.defaultProvider == "" && len(s.adapters) == 1 {
		for name := range s.adapters {
			s.defaultProvider = name
		}
	}
	return s, nil
}

// RegisterAdapter adds a pre-built adapter under a name, optionally with a
// rate limit. Used by embedders that construct adapters themselves.
func (s *Service) RegisterAdapter(name string, adapter ProviderAdapter, limit *RateLimit) {
	s.adapters[name] = adapter
	if s.defaultProvider == "" {
		s.defaultProvider = name
	}
	if limit != nil {
		s.limiter.SetLimit(name, *limit)
	}
}

// Request is the engine's sole entry point: select and validate the
// adapter, acquire rate-limit admission, send with retry, parse and
// validate the reply.
func (s *Service) Request(ctx context.Context, req Request) (interface{}, error) {
	providerName, adapter, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	// An unconfigured adapter must never consume quota or trigger
	// retries, so this check precedes both.
	if !adapter.IsConfigured() {
		return nil, configError(fmt.Sprintf("provider %q not configured", providerName))
	}

	if req.ID == "" {
		req.ID = "req_" + uuid.New().String()[:8]
	}

	estimated := req.EstimatedTokens
	if estimated <= 0 {
		estimated = estimateTokens(req.promptText())
	}

	if err := s.limiter.Acquire(ctx, providerName, estimated); err != nil {
		return nil, err
	}

	s.debugf("provider %s: dispatching request %s (est %d tokens)", providerName, req.ID, estimated)

	resp, err := Retry(ctx, s.retry, func(ctx context.Context) (*Response, error) {
		return adapter.SendRequest(ctx, req)
	})
	if err != nil {
		s.debugf("provider %s: request %s failed: %v", providerName, req.ID, err)
		return nil, err
	}

	s.recordUsage(providerName, resp.Usage)

	value, err := Parse(resp.Content, req.Schema)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// GenerateStructured asks for output matching schema. The schema is embedded
// in the system text so providers without native structured output comply,
// and the reply must validate against it.
func (s *Service) GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}) (interface{}, error) {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &EngineError{Message: "encode schema", Cause: err}
	}

	system := fmt.Sprintf(
		"You must respond with valid JSON matching this schema:\n```json\n%s\n```\nRespond ONLY with the JSON object, no other text.",
		schemaJSON,
	)

	return s.Request(ctx, Request{
		Prompt: prompt,
		System: system,
		Schema: schema,
	})
}

// UsageFor returns the cumulative token usage recorded for a provider.
func (s *Service) UsageFor(provider string) Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[provider]
}

// Limiter exposes the service's rate limiter, mainly for inspection.
func (s *Service) Limiter() *RateLimiter {
	return s.limiter
}

func (s *Service) resolve(req Request) (string, ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = s.defaultProvider
	}
	if name == "" {
		return "", nil, configError("no provider specified and no default provider configured")
	}
	adapter, ok := s.adapters[name]
	if !ok {
		return "", nil, configError(fmt.Sprintf("provider %q is not registered", name))
	}
	return name, adapter, nil
}

func (s *Service) recordUsage(provider string, u Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[provider] = s.usage[provider].Add(u)
}

func (s *Service) debugf(format string, args ...interface{}) {
	if s.debug {
		log.Printf("[llmbridge] "+format, args...)
	}
}
