package llmbridge

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string       `json:"id"`
	Provider      ProviderKind `json:"provider"`
	ContextWindow int          `json:"context_window"`
	MaxOutput     int          `json:"max_output"`
}

// Models is the built-in model catalog. The first entry per provider is that
// provider's default.
var Models = []ModelInfo{
	{ID: "gpt-4o", Provider: ProviderOpenAI, ContextWindow: 128000, MaxOutput: 16384},
	{ID: "gpt-4o-mini", Provider: ProviderOpenAI, ContextWindow: 128000, MaxOutput: 16384},
	{ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, ContextWindow: 200000, MaxOutput: 16384},
	{ID: "claude-haiku-4-5", Provider: ProviderAnthropic, ContextWindow: 200000, MaxOutput: 8192},
	{ID: "gpt-4o", Provider: ProviderCopilot, ContextWindow: 128000, MaxOutput: 16384},
	{ID: "llama3.1", Provider: ProviderOllama, ContextWindow: 131072, MaxOutput: 8192},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
	}
	return nil
}

// ListModels returns all known models for a provider, or the whole catalog
// when provider is empty.
func ListModels(provider ProviderKind) []ModelInfo {
	if provider == "" {
		out := make([]ModelInfo, len(Models))
		copy(out, Models)
		return out
	}
	var out []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModel returns the default model identifier for a provider.
func DefaultModel(provider ProviderKind) string {
	for _, m := range Models {
		if m.Provider == provider {
			return m.ID
		}
	}
	return ""
}
