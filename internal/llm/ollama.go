package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
)

const defaultOllamaModel = "llama3.2"

// OllamaAdapter talks to a local Ollama server.
type OllamaAdapter struct {
	settings
	baseURL    string
	httpClient *http.Client
}

// NewOllamaAdapter returns an uninitialized local-model adapter.
func NewOllamaAdapter() *OllamaAdapter {
	return &OllamaAdapter{}
}

// Initialize sets the model and endpoint. The endpoint is base_url from
// the config, else OLLAMA_BASE_URL, else http://localhost:11434.
func (a *OllamaAdapter) Initialize(cfg config.LLMConfig) error {
	a.settings = newSettings(cfg, defaultOllamaModel)

	a.baseURL = cfg.BaseURL
	if a.baseURL == "" {
		a.baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if a.baseURL == "" {
		a.baseURL = config.DefaultOllamaBaseURL
	}
	a.baseURL = strings.TrimRight(a.baseURL, "/")

	a.httpClient = &http.Client{Timeout: cfg.GetTimeout()}
	return nil
}

// Kind reports KindLocal.
func (a *OllamaAdapter) Kind() Kind { return KindLocal }

// BaseURL returns the server endpoint in use.
func (a *OllamaAdapter) BaseURL() string { return a.baseURL }

// Model returns the configured model name.
func (a *OllamaAdapter) Model() string { return a.model }

// Generate issues a single non-streaming completion.
func (a *OllamaAdapter) Generate(ctx context.Context, req Request) string {
	text, err := a.complete(ctx, a.resolve(req))
	if err != nil {
		logging.LLMError("[Ollama] generate failed: model=%s err=%v", a.model, err)
		return failSoft(err)
	}
	return text
}

func (a *OllamaAdapter) complete(ctx context.Context, req Request) (string, error) {
	if a.httpClient == nil {
		return "", fmt.Errorf("adapter not initialized")
	}
	startTime := time.Now()
	logging.LLMDebug("[Ollama] generate: model=%s prompt_len=%d system_len=%d", a.model, len(req.Prompt), len(req.SystemPrompt))

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  a.model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: *req.Temperature,
			NumPredict:  req.MaxTokens,
			Stop:        req.Stop,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	logging.LLMDebug("[Ollama] generate: completed in %v response_len=%d", time.Since(startTime), len(result.Response))
	return result.Response, nil
}

// Close drops idle keep-alive connections.
func (a *OllamaAdapter) Close() error {
	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
	return nil
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}
