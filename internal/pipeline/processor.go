package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"thoughtflow/internal/config"
	"thoughtflow/internal/llm"
	"thoughtflow/internal/logging"
	"thoughtflow/internal/prompt"
	"thoughtflow/internal/thought"
)

// NoLLMMarker appears in the result of a stage that had no template.
const NoLLMMarker = "no LLM interaction"

// AdapterSource hands out the adapter for a named LLM config.
// *llm.Pool satisfies it.
type AdapterSource interface {
	Get(name string) (llm.Adapter, config.LLMConfig, error)
}

// Processor applies a single stage to a record.
type Processor struct {
	adapters AdapterSource
	now      func() time.Time
}

// NewProcessor returns a processor drawing adapters from src.
func NewProcessor(src AdapterSource) *Processor {
	return &Processor{adapters: src, now: time.Now}
}

// Process advances rec into stage and stores the stage result. It never
// fails: a missing template yields a NoLLMMarker result and adapter
// problems yield an llm.ErrorPrefix result. Calling it twice for the same
// stage appends a second history entry and overwrites the result.
func (p *Processor) Process(ctx context.Context, rec *thought.Record, agent config.AgentConfig, stage Stage, templates *prompt.Table) *thought.Record {
	p.apply(ctx, rec, agent, stage, templates)
	return rec
}

// apply is Process reporting whether the stage result came from the model.
func (p *Processor) apply(ctx context.Context, rec *thought.Record, agent config.AgentConfig, stage Stage, templates *prompt.Table) (generated bool) {
	key := strings.ToLower(stage.Name)
	rec.Advance(key, p.now())

	input, ok := templates.Resolve(stage.ID, rec.Content)
	if !ok {
		logging.PipelineDebug("[%s] no template for stage %q, skipping LLM", rec.ID, stage.ID)
		rec.SetResult(key, fmt.Sprintf("Processed by %s (%s)", stage.Name, NoLLMMarker))
		return false
	}

	adapter, lc, err := p.adapters.Get(agent.LLMRef())
	if err != nil {
		logging.PipelineError("[%s] stage %s: %v", rec.ID, stage.Name, err)
		rec.SetResult(key, llm.ErrorPrefix+err.Error())
		return false
	}

	system := agent.SystemPrompt()
	if agent.Verbose {
		logging.PipelineDebug("[%s] stage %s via %s (%s) system=%q prompt=%q", rec.ID, stage.Name, agent.LLMRef(), lc.Model, system, input)
	}

	timer := logging.StartTimer(logging.CategoryPipeline, "stage "+stage.Name)
	text := generate(ctx, adapter, llm.Request{Prompt: input, SystemPrompt: system})
	timer.StopWithThreshold(lc.GetTimeout() / 2)

	rec.SetResult(key, text)
	if llm.IsError(text) {
		logging.PipelineWarn("[%s] stage %s returned an error result", rec.ID, stage.Name)
		return false
	}
	return true
}

// generate calls the adapter and turns a panic into an error result.
func generate(ctx context.Context, a llm.Adapter, req llm.Request) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logging.PipelineError("PANIC RECOVERED in adapter %s: %v", a.Kind(), r)
			text = fmt.Sprintf("%sadapter panicked: %v", llm.ErrorPrefix, r)
		}
	}()
	return a.Generate(ctx, req)
}
