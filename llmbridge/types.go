package llmbridge

import "strings"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn, independent of any vendor wire format.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Request is the logical request envelope handed to the engine. It carries
// either a free-text Prompt or a full Messages conversation, never both.
// A Request is constructed per call and not mutated afterwards.
type Request struct {
	ID       string    `json:"id,omitempty"`
	Model    string    `json:"model,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Prompt   string    `json:"prompt,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	System   string    `json:"system,omitempty"`

	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Schema, when set, is a JSON Schema the parsed response must satisfy.
	Schema map[string]interface{} `json:"schema,omitempty"`

	// EstimatedTokens overrides the default prompt-length cost estimate
	// used for rate-limit admission. Zero means "estimate for me".
	EstimatedTokens int `json:"estimated_tokens,omitempty"`
}

// conversation returns the request as a message list, folding a bare Prompt
// into a single user message. System text is not included; adapters place it
// wherever their vendor requires.
func (r Request) conversation() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{UserMessage(r.Prompt)}
}

// promptText returns all user-visible request text, used for token estimation.
func (r Request) promptText() string {
	var sb strings.Builder
	sb.WriteString(r.System)
	sb.WriteString(r.Prompt)
	for _, m := range r.Messages {
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// Usage tracks token consumption for one exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Response is the normalized reply envelope. Whatever shape a vendor returns,
// adapters reduce it to this before anything else sees it.
type Response struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
}

// estimateTokens is the admission-cost heuristic: roughly four characters
// per token, floored at a small constant so empty prompts still count.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 10 {
		n = 10
	}
	return n
}
