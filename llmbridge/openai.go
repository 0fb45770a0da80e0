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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter speaks the OpenAI chat-completions wire format. System text
// travels inline as a leading system-role message; the reply's content lives
// at choices[0].message.content.
type OpenAIAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIAdapter builds the adapter. Construction fails closed: without an
// API key the internal client is left unset and SendRequest refuses to touch
// the network.
func NewOpenAIAdapter(cfg ProviderConfig) *OpenAIAdapter {
	a := &OpenAIAdapter{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
	}
	if a.baseURL == "" {
		a.baseURL = defaultOpenAIBaseURL
	}
	if a.model == "" {
		a.model = DefaultModel(ProviderOpenAI)
	}
	if a.apiKey != "" {
		a.client = &http.Client{Timeout: 60 * time.Second}
	}
	return a
}

func (a *OpenAIAdapter) Name() string { return string(ProviderOpenAI) }

func (a *OpenAIAdapter) IsConfigured() bool { return a.client != nil }

// Vendor wire shapes, shared with the Copilot adapter whose API mirrors them.

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// SendRequest performs one chat-completions exchange and normalizes the
// reply into a Response envelope.
func (a *OpenAIAdapter) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if a.client == nil {
		return nil, configError("OpenAI API key not configured")
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	wire := openAIRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.conversation() {
		wire.Messages = append(wire.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, &EngineError{Message: "encode openai request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &EngineError{Message: "build openai request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "openai request failed", Cause: err}}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "read openai response", Cause: err}}
	}

	if httpResp.StatusCode != http.StatusOK {
		var eb openAIErrorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("openai returned status %d", httpResp.StatusCode)
		}
		code := eb.Error.Code
		if code == "" {
			code = eb.Error.Type
		}
		return nil, ErrorFromStatusCode(httpResp.StatusCode, msg, a.Name(), code)
	}

	var wireResp openAIResponse
	if err := json.Unmarshal(raw, &wireResp); err != nil {
		return nil, &EngineError{Message: "decode openai response", Cause: err}
	}
	if len(wireResp.Choices) == 0 {
		return nil, &EngineError{Message: "openai response contained no choices"}
	}

	id := wireResp.ID
	if id == "" {
		id = "resp_" + uuid.New().String()[:8]
	}

	return &Response{
		ID:       id,
		Model:    wireResp.Model,
		Provider: a.Name(),
		Content:  wireResp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     wireResp.Usage.PromptTokens,
			CompletionTokens: wireResp.Usage.CompletionTokens,
			TotalTokens:      wireResp.Usage.TotalTokens,
		},
	}, nil
}
