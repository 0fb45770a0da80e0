package llmbridge

import "context"

// ProviderAdapter is the interface every provider backend implements. An
// adapter owns the translation between the engine's envelopes and one
// vendor's wire format; nothing outside an adapter ever sees vendor-native
// shapes.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// SendRequest performs one network exchange. Unconfigured adapters
	// fail fast with a ConfigurationError before touching the network.
	SendRequest(ctx context.Context, req Request) (*Response, error)

	// IsConfigured reports whether the adapter holds the credential it
	// needs to talk to its vendor.
	IsConfigured() bool
}

// ProviderKind enumerates the closed set of supported provider variants.
// Adapters are selected by tag, never by structural typing.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderCopilot   ProviderKind = "copilot"
	ProviderOllama    ProviderKind = "ollama"
)

// ProviderConfig identifies one configured backend. Immutable after
// construction; one instance per provider.
type ProviderConfig struct {
	Kind    ProviderKind
	APIKey  string
	Model   string
	BaseURL string

	// Sliding-window budget. TokensPerMinute <= 0 leaves the token
	// predicate disabled.
	RequestsPerMinute int
	TokensPerMinute   int
}

// NewAdapter is the provider factory. It selects the adapter variant for
// cfg.Kind and validates that the variant's required credential is present,
// failing with a ConfigurationError at selection time rather than first use.
func NewAdapter(cfg ProviderConfig) (ProviderAdapter, error) {
	switch cfg.Kind {
	case ProviderOpenAI:
		a := NewOpenAIAdapter(cfg)
		if !a.IsConfigured() {
			return nil, configError("OpenAI API key not configured")
		}
		return a, nil
	case ProviderAnthropic:
		a := NewAnthropicAdapter(cfg)
		if !a.IsConfigured() {
			return nil, configError("Anthropic API key not configured")
		}
		return a, nil
	case ProviderCopilot:
		a := NewCopilotAdapter(cfg)
		if !a.IsConfigured() {
			return nil, configError("Copilot API key not configured")
		}
		return a, nil
	case ProviderOllama:
		return NewGollmAdapter(cfg)
	default:
		return nil, configError("unknown provider kind " + string(cfg.Kind))
	}
}

func configError(msg string) *ConfigurationError {
	return &ConfigurationError{EngineError: EngineError{Message: msg}}
}
