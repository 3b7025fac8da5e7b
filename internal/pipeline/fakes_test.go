package pipeline

import (
	"context"
	"sync"

	"thoughtflow/internal/config"
	"thoughtflow/internal/llm"
)

// fakeAdapter answers every prompt through respond and records the calls.
type fakeAdapter struct {
	mu      sync.Mutex
	calls   []llm.Request
	respond func(req llm.Request) string
}

func (f *fakeAdapter) Initialize(config.LLMConfig) error { return nil }
func (f *fakeAdapter) Close() error                      { return nil }
func (f *fakeAdapter) Kind() llm.Kind                    { return llm.KindLocal }

func (f *fakeAdapter) Generate(ctx context.Context, req llm.Request) string {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.respond == nil {
		return "ok: " + req.Prompt
	}
	return f.respond(req)
}

func (f *fakeAdapter) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeSource returns the same adapter for every config name.
type fakeSource struct {
	adapter llm.Adapter
	err     error
	timeout string
	names   []string
}

func (s *fakeSource) Get(name string) (llm.Adapter, config.LLMConfig, error) {
	s.names = append(s.names, name)
	if s.err != nil {
		return nil, config.LLMConfig{}, s.err
	}
	return s.adapter, config.LLMConfig{Model: "fake", Timeout: s.timeout}, nil
}

// panicAdapter panics on Generate.
type panicAdapter struct{ fakeAdapter }

func (p *panicAdapter) Generate(context.Context, llm.Request) string {
	panic("backend exploded")
}
