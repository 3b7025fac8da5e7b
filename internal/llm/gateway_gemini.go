package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"
)

// geminiBackend calls the Gemini API through the genai SDK. The client is
// created on first use so that a missing key surfaces as a fail-soft
// result instead of an initialization error.
type geminiBackend struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration

	mu     sync.Mutex
	client *genai.Client
}

func newGeminiBackend(baseURL, apiKey, model string, timeout time.Duration) *geminiBackend {
	return &geminiBackend{baseURL: baseURL, apiKey: apiKey, model: model, timeout: timeout}
}

func (b *geminiBackend) getClient(ctx context.Context) (*genai.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	if b.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured")
	}

	cc := &genai.ClientConfig{
		APIKey:     b.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: b.timeout},
	}
	if b.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	b.client = client
	return client, nil
}

func (b *geminiBackend) complete(ctx context.Context, req Request) (string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(*req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
		StopSequences:   req.Stop,
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}
	result, err := client.Models.GenerateContent(ctx, b.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return text, nil
}

// close drops the client. The genai SDK has nothing else to release.
func (b *geminiBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil
	return nil
}
