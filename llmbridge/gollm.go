package llmbridge

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter backs providers the engine has no native wire implementation
// for, currently local Ollama models. It delegates transport and vendor
// shaping to the gollm library and normalizes the result into the engine's
// envelopes. Because gollm does not expose usage accounting, token counts
// are estimated from text length.
type GollmAdapter struct {
	kind  ProviderKind
	model string
	llm   gollm.LLM
}

// NewGollmAdapter builds a gollm-backed adapter for cfg.Kind.
func NewGollmAdapter(cfg ProviderConfig) (*GollmAdapter, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Kind)
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(string(cfg.Kind)),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0), // the engine owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, configError("create " + string(cfg.Kind) + " backend: " + err.Error())
	}

	return &GollmAdapter{kind: cfg.Kind, model: model, llm: llm}, nil
}

func (a *GollmAdapter) Name() string { return string(a.kind) }

func (a *GollmAdapter) IsConfigured() bool { return a.llm != nil }

// SendRequest folds the request into a single gollm prompt, generates, and
// wraps the reply in a Response envelope.
func (a *GollmAdapter) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if a.llm == nil {
		return nil, configError(string(a.kind) + " backend not configured")
	}

	system := req.System
	var userParts []string
	for _, m := range req.conversation() {
		switch m.Role {
		case RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system += "\n" + m.Content
			}
		case RoleAssistant:
			if m.Content != "" {
				userParts = append(userParts, "[Assistant]: "+m.Content)
			}
		default:
			userParts = append(userParts, m.Content)
		}
	}

	promptOpts := []gollm.PromptOption{}
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}

	prompt := gollm.NewPrompt(strings.Join(userParts, "\n"), promptOpts...)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	in := estimateTokens(req.promptText())
	out := len(text) / 4
	return &Response{
		ID:       "resp_" + uuid.New().String()[:8],
		Model:    a.model,
		Provider: a.Name(),
		Content:  text,
		Usage: Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}

// translateError classifies a gollm error by message content, since the
// library does not expose status codes.
func (a *GollmAdapter) translateError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	pe := ProviderError{
		EngineError: EngineError{Message: msg, Cause: err},
		Provider:    a.Name(),
	}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		pe.StatusCode = 401
		return &AuthenticationError{ProviderError: pe}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		pe.StatusCode = 429
		return &RateLimitError{ProviderError: pe}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		pe.StatusCode = 500
		return &ServerError{ProviderError: pe}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{EngineError: EngineError{Message: msg, Cause: err}}
	case strings.Contains(lower, "connection"):
		return &NetworkError{EngineError: EngineError{Message: msg, Cause: err}}
	default:
		return &pe
	}
}
