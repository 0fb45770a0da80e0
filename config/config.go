// Package config loads codesight configuration from a YAML file, resolving
// credentials through environment variables so keys stay out of config
// files.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codesight-dev/codesight/llmbridge"
)

// Provider is one provider entry in the config file.
type Provider struct {
	Kind              string `yaml:"kind"`
	APIKey            string `yaml:"api_key"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TokensPerMinute   int    `yaml:"tokens_per_minute"`
}

// File is the on-disk configuration shape.
type File struct {
	DefaultProvider string              `yaml:"default_provider"`
	Providers       map[string]Provider `yaml:"providers"`
}

// Load reads and resolves the config file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// EngineConfig converts the file into the engine's Config, resolving each
// provider's credential: an explicit api_key wins, otherwise api_key_env
// names the environment variable to read, otherwise the provider's
// conventional variable (e.g. OPENAI_API_KEY) is tried.
func (f *File) EngineConfig() llmbridge.Config {
	cfg := llmbridge.Config{
		DefaultProvider: f.DefaultProvider,
		Providers:       make(map[string]llmbridge.ProviderConfig, len(f.Providers)),
	}
	for name, p := range f.Providers {
		cfg.Providers[name] = llmbridge.ProviderConfig{
			Kind:              llmbridge.ProviderKind(p.Kind),
			APIKey:            p.resolveKey(),
			Model:             p.Model,
			BaseURL:           p.BaseURL,
			RequestsPerMinute: p.RequestsPerMinute,
			TokensPerMinute:   p.TokensPerMinute,
		}
	}
	return cfg
}

func (p Provider) resolveKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return os.Getenv(conventionalKeyVar(p.Kind))
}

func conventionalKeyVar(kind string) string {
	switch kind {
	case "copilot":
		return "GITHUB_TOKEN"
	case "ollama":
		return ""
	default:
		return strings.ToUpper(kind) + "_API_KEY"
	}
}
