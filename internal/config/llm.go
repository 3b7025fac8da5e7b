package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the fallback LLM config.
const (
	DefaultAdapter     = "ollama"
	DefaultModel       = "llama3.2"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultLLMTimeout  = 120 * time.Second
)

// LLMConfig configures one named LLM backend.
type LLMConfig struct {
	Adapter      string   `yaml:"adapter"`  // ollama, litellm
	Provider     string   `yaml:"provider"` // ollama, gemini, openai, anthropic
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Timeout      string   `yaml:"timeout"`
	SystemPrompt string   `yaml:"system_prompt"`
	Stop         []string `yaml:"stop"`
}

// Tag returns the adapter selector: adapter if set, else provider.
func (l LLMConfig) Tag() string {
	if l.Adapter != "" {
		return l.Adapter
	}
	return l.Provider
}

// GetTemperature returns the configured temperature or the default.
func (l LLMConfig) GetTemperature() float64 {
	if l.Temperature == nil {
		return DefaultTemperature
	}
	return *l.Temperature
}

// GetMaxTokens returns the configured token limit or the default.
func (l LLMConfig) GetMaxTokens() int {
	if l.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return l.MaxTokens
}

// GetTimeout returns the per-call timeout as a duration.
func (l LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return DefaultLLMTimeout
	}
	return d
}

// DefaultLLMConfig is used when no named or "default" config exists.
func DefaultLLMConfig() LLMConfig {
	temp := DefaultTemperature
	return LLMConfig{
		Adapter:     DefaultAdapter,
		Model:       DefaultModel,
		Temperature: &temp,
		MaxTokens:   DefaultMaxTokens,
	}
}

// LoadLLMConfigs reads the LLM config table. The file is a mapping from
// config name to LLMConfig; an optional top-level llm_configs key is
// accepted too. A missing file yields an empty table.
func LoadLLMConfigs(path string) (map[string]LLMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]LLMConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var wrapped struct {
		LLMConfigs map[string]LLMConfig `yaml:"llm_configs"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.LLMConfigs) > 0 {
		return wrapped.LLMConfigs, nil
	}

	table := make(map[string]LLMConfig)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table, nil
}

// LLMFor resolves an LLM config by name: exact, then case-insensitive,
// then "default", then DefaultLLMConfig. found is false only in the last case.
func (c *Config) LLMFor(name string) (cfg LLMConfig, found bool) {
	if l, ok := c.LLMs[name]; ok {
		return l, true
	}
	for n, l := range c.LLMs {
		if strings.EqualFold(n, name) {
			return l, true
		}
	}
	if l, ok := c.LLMs["default"]; ok {
		return l, true
	}
	return DefaultLLMConfig(), false
}
