package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
)

// Pool hands out one adapter per named LLM config for the lifetime of a
// run. Adapters are built lazily and reused across records.
type Pool struct {
	cfg     *config.Config
	factory Factory

	mu       sync.Mutex
	adapters map[string]Adapter
	configs  map[string]config.LLMConfig
}

// NewPool returns a pool resolving names against cfg. A nil factory uses New.
func NewPool(cfg *config.Config, factory Factory) *Pool {
	if factory == nil {
		factory = New
	}
	return &Pool{
		cfg:      cfg,
		factory:  factory,
		adapters: make(map[string]Adapter),
		configs:  make(map[string]config.LLMConfig),
	}
}

// Get returns the adapter for an LLM config name together with the config
// it was built from. Unknown names resolve through LLMFor; a config whose
// adapter tag is unsupported falls back to the built-in default.
func (p *Pool) Get(name string) (Adapter, config.LLMConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.adapters[name]; ok {
		return a, p.configs[name], nil
	}

	lc, found := p.cfg.LLMFor(name)
	if !found {
		logging.LLMWarn("llm config %q not found, using built-in default", name)
	}

	a, err := p.factory(lc)
	if errors.Is(err, ErrUnsupportedAdapter) {
		logging.LLMWarn("llm config %q: %v, using built-in default", name, err)
		lc = config.DefaultLLMConfig()
		a, err = p.factory(lc)
	}
	if err != nil {
		return nil, lc, fmt.Errorf("llm config %q: %w", name, err)
	}

	p.adapters[name] = a
	p.configs[name] = lc
	return a, lc, nil
}

// Names returns the names of the adapters built so far.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.adapters))
	for n := range p.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every adapter and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, a := range p.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	p.adapters = make(map[string]Adapter)
	p.configs = make(map[string]config.LLMConfig)
	return errors.Join(errs...)
}
