package llmbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCopilotBaseURL = "https://api.githubcopilot.com"
	copilotTokenURL       = "https://api.github.com/copilot_internal/v2/token"

	// Refresh the session token this long before it expires.
	copilotTokenSkew = 60 * time.Second
)

// CopilotAdapter speaks the GitHub Copilot chat-completions wire format,
// which mirrors OpenAI's. The configured credential is a GitHub OAuth token;
// it is exchanged for a short-lived session token that authorizes the actual
// completion calls and is refreshed as it nears expiry.
type CopilotAdapter struct {
	githubToken string
	model       string
	baseURL     string
	tokenURL    string
	client      *http.Client

	mu        sync.Mutex
	session   string
	expiresAt time.Time
	refresh   singleflight.Group
}

// NewCopilotAdapter builds the adapter. Without a GitHub token the internal
// client is left unset and SendRequest refuses to touch the network.
func NewCopilotAdapter(cfg ProviderConfig) *CopilotAdapter {
	a := &CopilotAdapter{
		githubToken: cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		tokenURL:    copilotTokenURL,
	}
	if a.baseURL == "" {
		a.baseURL = defaultCopilotBaseURL
	}
	if a.model == "" {
		a.model = DefaultModel(ProviderCopilot)
	}
	if a.githubToken != "" {
		a.client = &http.Client{Timeout: 60 * time.Second}
	}
	return a
}

func (a *CopilotAdapter) Name() string { return string(ProviderCopilot) }

func (a *CopilotAdapter) IsConfigured() bool { return a.client != nil }

type copilotTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// sessionToken returns a valid session token, exchanging the GitHub token
// for a fresh one when the cached token is absent or near expiry. Concurrent
// refreshes collapse into a single exchange.
func (a *CopilotAdapter) sessionToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	token, expires := a.session, a.expiresAt
	a.mu.Unlock()

	if token != "" && time.Until(expires) > copilotTokenSkew {
		return token, nil
	}

	v, err, _ := a.refresh.Do("token", func() (interface{}, error) {
		return a.exchangeToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *CopilotAdapter) exchangeToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.tokenURL, nil)
	if err != nil {
		return "", &EngineError{Message: "build copilot token request", Cause: err}
	}
	req.Header.Set("Authorization", "token "+a.githubToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &NetworkError{EngineError: EngineError{Message: "copilot token exchange failed", Cause: err}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{EngineError: EngineError{Message: "read copilot token response", Cause: err}}
	}
	if resp.StatusCode != http.StatusOK {
		return "", ErrorFromStatusCode(resp.StatusCode,
			fmt.Sprintf("copilot token exchange returned status %d", resp.StatusCode), a.Name(), "")
	}

	var tr copilotTokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", &EngineError{Message: "decode copilot token response", Cause: err}
	}
	if tr.Token == "" {
		return "", &AuthenticationError{ProviderError: ProviderError{
			EngineError: EngineError{Message: "copilot token exchange returned no token"},
			Provider:    a.Name(),
			StatusCode:  401,
		}}
	}

	expires := tokenExpiry(tr)

	a.mu.Lock()
	a.session = tr.Token
	a.expiresAt = expires
	a.mu.Unlock()

	return tr.Token, nil
}

// tokenExpiry prefers the exchange response's expires_at; when the endpoint
// omits it, the token's own exp claim is read without signature verification
// (expiry scheduling only, never authorization).
func tokenExpiry(tr copilotTokenResponse) time.Time {
	if tr.ExpiresAt > 0 {
		return time.Unix(tr.ExpiresAt, 0)
	}
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tr.Token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	// Unknown lifetime; assume the conventional hour.
	return time.Now().Add(time.Hour)
}

// SendRequest performs one chat-completions exchange against the Copilot API
// and normalizes the reply into a Response envelope.
func (a *CopilotAdapter) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if a.client == nil {
		return nil, configError("Copilot API key not configured")
	}

	session, err := a.sessionToken(ctx)
	if err != nil {
		return nil, err
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
		return nil, &EngineError{Message: "encode copilot request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &EngineError{Message: "build copilot request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+session)
	httpReq.Header.Set("Editor-Version", "vscode/1.95.0")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "copilot request failed", Cause: err}}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{EngineError: EngineError{Message: "read copilot response", Cause: err}}
	}

	if httpResp.StatusCode != http.StatusOK {
		var eb openAIErrorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("copilot returned status %d", httpResp.StatusCode)
		}
		if httpResp.StatusCode == http.StatusUnauthorized {
			// Session token was revoked early; drop it so the next call
			// re-exchanges.
			a.mu.Lock()
			a.session = ""
			a.mu.Unlock()
		}
		return nil, ErrorFromStatusCode(httpResp.StatusCode, msg, a.Name(), eb.Error.Code)
	}

	var wireResp openAIResponse
	if err := json.Unmarshal(raw, &wireResp); err != nil {
		return nil, &EngineError{Message: "decode copilot response", Cause: err}
	}
	if len(wireResp.Choices) == 0 {
		return nil, &EngineError{Message: "copilot response contained no choices"}
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
