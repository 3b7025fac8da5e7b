// Package llm wraps heterogeneous LLM backends behind one Adapter interface.
//
// Two variants exist: a local model server (Ollama) and a multi-provider
// gateway that routes by model name to OpenAI, Anthropic, Gemini or any
// OpenAI-compatible endpoint. Generate is fail-soft: backend errors come
// back as text starting with ErrorPrefix instead of an error value.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"thoughtflow/internal/config"
)

// ErrorPrefix starts every result produced from a failed generation.
const ErrorPrefix = "Error generating response: "

// ErrUnsupportedAdapter is returned when a config tag names no known variant.
var ErrUnsupportedAdapter = errors.New("unsupported adapter type")

// Kind enumerates the adapter variants.
type Kind int

const (
	KindLocal   Kind = iota + 1 // local model server
	KindGateway                 // hosted multi-provider gateway
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "ollama"
	case KindGateway:
		return "litellm"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind resolves an adapter/provider tag case-insensitively.
func ParseKind(tag string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "ollama", "local":
		return KindLocal, nil
	case "litellm", "gateway", "openai", "gemini", "google", "anthropic", "claude":
		return KindGateway, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAdapter, tag)
	}
}

// Request is one generation call. Zero values fall back to the adapter's
// configured defaults.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
	Stop         []string
}

// Adapter is the uniform interface over LLM backends.
type Adapter interface {
	// Initialize applies an LLM config. Gateway adapters also export the
	// configured API key to the provider's environment variable.
	Initialize(cfg config.LLMConfig) error
	// Generate returns the model's text, or ErrorPrefix plus the failure.
	Generate(ctx context.Context, req Request) string
	// Close releases backend resources.
	Close() error
	// Kind reports the adapter variant.
	Kind() Kind
}

// IsError reports whether a generated text is a fail-soft error result.
func IsError(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

// settings holds the generation defaults shared by both variants.
type settings struct {
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	stop         []string
}

func newSettings(cfg config.LLMConfig, defaultModel string) settings {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return settings{
		model:        model,
		temperature:  cfg.GetTemperature(),
		maxTokens:    cfg.GetMaxTokens(),
		systemPrompt: cfg.SystemPrompt,
		stop:         cfg.Stop,
	}
}

// resolve fills a request's zero values from the defaults.
func (s settings) resolve(req Request) Request {
	if req.Temperature == nil {
		t := s.temperature
		req.Temperature = &t
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = s.maxTokens
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = s.systemPrompt
	}
	if len(req.Stop) == 0 {
		req.Stop = s.stop
	}
	return req
}

func failSoft(err error) string {
	return ErrorPrefix + err.Error()
}
