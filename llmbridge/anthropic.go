package llmbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// AnthropicAdapter speaks the Anthropic messages wire format. Unlike OpenAI,
// system text is a separate top-level field, max_tokens is mandatory, and
// the reply's content lives at content[0].text.
type AnthropicAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicAdapter builds the adapter. Without an API key the internal
// client is left unset and SendRequest refuses to touch the network.
func NewAnthropicAdapter(cfg ProviderConfig) *AnthropicAdapter {
	a := &AnthropicAdapter{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
	}
	if a.baseURL == "" {
		a.baseURL = defaultAnthropicBaseURL
	}
	if a.model == "" {
		a.model = DefaultModel(ProviderAnthropic)
	}
	if a.apiKey != "" {
		a.client = &http.Client{Timeout: 60 * time.Second}
	}
	return a
}

func (a *AnthropicAdapter) Name() string { return string(ProviderAnthropic) }

func (a *AnthropicAdapter) IsConfigured() bool { return a.client != nil }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendRequest performs one messages exchange and normalizes the reply into a
// Response envelope.
func (a *AnthropicAdapter) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if a.client == nil {
		return nil, configError("Anthropic API key not configured")
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokens
	}

	wire := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	}
	for _, m := range req.conversation() {
		// Anthropic rejects system-role entries in the messages array.
		if m.Role == RoleSystem {
			if wire.System == "" {
				wire.System = m.Content
			} else {
				wire.System += "\n" + m.Content
			}
			continue
		}
		wire.Messages = append(wire.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, &EngineError{Message: "encode anthropic request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &EngineError{Message: "build anthropic request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "anthropic request failed", Cause: err}}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "read anthropic response", Cause: err}}
	}

	if httpResp.StatusCode != http.StatusOK {
		var eb anthropicErrorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("anthropic returned status %d", httpResp.StatusCode)
		}
		return nil, ErrorFromStatusCode(httpResp.StatusCode, msg, a.Name(), eb.Error.Type)
	}

	var wireResp anthropicResponse
	if err := json.Unmarshal(raw, &wireResp); err != nil {
		return nil, &EngineError{Message: "decode anthropic response", Cause: err}
	}

	var content string
	for _, part := range wireResp.Content {
		if part.Type == "text" {
			content = part.Text
			break
		}
	}

	id := wireResp.ID
	if id == "" {
		id = "msg_" + uuid.New().String()[:8]
	}

	in, out := wireResp.Usage.InputTokens, wireResp.Usage.OutputTokens
	return &Response{
		ID:       id,
		Model:    wireResp.Model,
		Provider: a.Name(),
		Content:  content,
		Usage: Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}
