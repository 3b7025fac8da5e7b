package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
)

const defaultGatewayModel = "gpt-4o-mini"

// Provider identifies the hosted API a gateway adapter talks to.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
	ProviderCompatible Provider = "compatible" // any OpenAI-compatible endpoint
)

// providerEnv lists the environment variables an API key is exported to.
var providerEnv = map[Provider][]string{
	ProviderOpenAI:     {"OPENAI_API_KEY"},
	ProviderAnthropic:  {"ANTHROPIC_API_KEY"},
	ProviderGemini:     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	ProviderCompatible: {"OPENAI_API_KEY"},
}

// providerDefaultModel is used when a config names a provider but no model.
var providerDefaultModel = map[Provider]string{
	ProviderOpenAI:     defaultGatewayModel,
	ProviderAnthropic:  "claude-3-5-haiku-latest",
	ProviderGemini:     "gemini-2.0-flash",
	ProviderCompatible: defaultGatewayModel,
}

// backend performs one completion against a provider API.
type backend interface {
	complete(ctx context.Context, req Request) (string, error)
	close() error
}

// GatewayAdapter routes generation to a hosted provider chosen from the
// model name.
type GatewayAdapter struct {
	settings
	provider Provider
	backend  backend
}

// NewGatewayAdapter returns an uninitialized gateway adapter.
func NewGatewayAdapter() *GatewayAdapter {
	return &GatewayAdapter{}
}

// Initialize picks the provider, exports the API key to the provider's
// environment variables (process-wide) and builds the backend. Without a
// configured key the provider's environment variable is used.
func (a *GatewayAdapter) Initialize(cfg config.LLMConfig) error {
	hint := cfg.Provider
	if hint == "" {
		hint = cfg.Adapter
	}
	provider, model := Route(hint, cfg.Model)
	if model == "" {
		model = providerDefaultModel[provider]
	}
	cfg.Model = model
	a.settings = newSettings(cfg, defaultGatewayModel)
	a.provider = provider

	apiKey := cfg.APIKey
	if apiKey != "" {
		for _, env := range providerEnv[provider] {
			if err := os.Setenv(env, apiKey); err != nil {
				return fmt.Errorf("export %s: %w", env, err)
			}
		}
	} else {
		for _, env := range providerEnv[provider] {
			if v := os.Getenv(env); v != "" {
				apiKey = v
				break
			}
		}
	}

	timeout := cfg.GetTimeout()
	switch provider {
	case ProviderAnthropic:
		a.backend = newAnthropicBackend(cfg.BaseURL, apiKey, a.model, timeout)
	case ProviderGemini:
		a.backend = newGeminiBackend(cfg.BaseURL, apiKey, a.model, timeout)
	case ProviderOpenAI, ProviderCompatible:
		a.backend = newOpenAIBackend(cfg.BaseURL, apiKey, a.model, timeout)
	}
	logging.LLMDebug("[Gateway] initialized: provider=%s model=%s", provider, a.model)
	return nil
}

// Kind reports KindGateway.
func (a *GatewayAdapter) Kind() Kind { return KindGateway }

// Provider returns the routed provider.
func (a *GatewayAdapter) Provider() Provider { return a.provider }

// Model returns the model name sent to the provider.
func (a *GatewayAdapter) Model() string { return a.model }

// Generate issues a single chat completion with an optional system message.
func (a *GatewayAdapter) Generate(ctx context.Context, req Request) string {
	if a.backend == nil {
		return failSoft(fmt.Errorf("adapter not initialized"))
	}
	startTime := time.Now()
	req = a.resolve(req)
	logging.LLMDebug("[Gateway] generate: provider=%s model=%s prompt_len=%d", a.provider, a.model, len(req.Prompt))

	text, err := a.backend.complete(ctx, req)
	if err != nil {
		logging.LLMError("[Gateway] generate failed after %v: provider=%s model=%s err=%v", time.Since(startTime), a.provider, a.model, err)
		return failSoft(err)
	}
	logging.LLMDebug("[Gateway] generate: completed in %v response_len=%d", time.Since(startTime), len(text))
	return text
}

// Close releases the backend.
func (a *GatewayAdapter) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.close()
}

// Route decides the provider for a model. An explicit provider wins, then
// a "provider/model" prefix, then a match on the model's leading segment.
// The returned model has any provider prefix removed.
func Route(provider, model string) (Provider, string) {
	if p, ok := parseProvider(provider); ok {
		return p, stripProviderPrefix(model)
	}
	if prefix, rest, ok := strings.Cut(model, "/"); ok {
		if p, ok := parseProvider(prefix); ok {
			return p, rest
		}
	}

	head := strings.ToLower(strings.SplitN(model, "-", 2)[0])
	switch {
	case strings.Contains(head, "gemini"):
		return ProviderGemini, model
	case strings.Contains(head, "gpt"), strings.Contains(head, "openai"),
		head == "o1", head == "o3", head == "o4":
		return ProviderOpenAI, model
	case strings.Contains(head, "claude"):
		return ProviderAnthropic, model
	default:
		return ProviderCompatible, model
	}
}

func parseProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, true
	case "anthropic", "claude":
		return ProviderAnthropic, true
	case "gemini", "google":
		return ProviderGemini, true
	default:
		return "", false
	}
}

func stripProviderPrefix(model string) string {
	if prefix, rest, ok := strings.Cut(model, "/"); ok {
		if _, known := parseProvider(prefix); known {
			return rest
		}
	}
	return model
}
