package llm

import (
	"fmt"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
)

// Factory builds a ready adapter from an LLM config.
type Factory func(cfg config.LLMConfig) (Adapter, error)

// New selects the adapter variant from the config's adapter/provider tag,
// constructs it and initializes it with cfg.
func New(cfg config.LLMConfig) (Adapter, error) {
	kind, err := ParseKind(cfg.Tag())
	if err != nil {
		return nil, err
	}

	var a Adapter
	switch kind {
	case KindLocal:
		a = NewOllamaAdapter()
	case KindGateway:
		a = NewGatewayAdapter()
	}

	if err := a.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("initialize %s adapter: %w", kind, err)
	}
	logging.LLMDebug("created %s adapter for model %q", kind, cfg.Model)
	return a, nil
}

// NewFromTag builds an adapter from a bare tag using default settings.
func NewFromTag(tag string) (Adapter, error) {
	cfg := config.DefaultLLMConfig()
	cfg.Adapter = tag
	cfg.Model = ""
	return New(cfg)
}
