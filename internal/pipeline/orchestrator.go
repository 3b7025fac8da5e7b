package pipeline

import (
	"context"
	"fmt"
	"strings"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
	"thoughtflow/internal/prompt"
	"thoughtflow/internal/thought"
)

// Sink receives finished records and returns where they were stored.
type Sink interface {
	Deliver(rec *thought.Record) (string, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec *thought.Record) (string, error)

// Deliver calls f.
func (f SinkFunc) Deliver(rec *thought.Record) (string, error) { return f(rec) }

// Orchestrator folds the Processor over a fixed stage list.
type Orchestrator struct {
	cfg         *config.Config
	stages      []Stage
	templates   *prompt.Table
	processor   *Processor
	contentMode string
	sink        Sink
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStages overrides the configured stage list.
func WithStages(stages []Stage) Option {
	return func(o *Orchestrator) { o.stages = stages }
}

// WithSink sets where finished records go.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithProcessor replaces the default processor.
func WithProcessor(p *Processor) Option {
	return func(o *Orchestrator) { o.processor = p }
}

// NewOrchestrator builds an orchestrator from cfg. Without WithStages the
// stage list comes from the config and must name configured agents.
func NewOrchestrator(cfg *config.Config, src AdapterSource, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:         cfg,
		templates:   prompt.NewTable(cfg.Templates()),
		processor:   NewProcessor(src),
		contentMode: cfg.Pipeline.ContentMode,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.contentMode == "" {
		o.contentMode = config.ContentThreaded
	}
	if o.stages == nil {
		stages, err := ResolveStages(cfg, nil)
		if err != nil {
			return nil, err
		}
		o.stages = stages
	}
	return o, nil
}

// Stages returns the stage list in run order.
func (o *Orchestrator) Stages() []Stage {
	out := make([]Stage, len(o.stages))
	copy(out, o.stages)
	return out
}

// Run takes rec through every stage in order and delivers it to the sink.
// Stage failures never stop the run; the only error is from delivery.
// path is empty when no sink is configured.
func (o *Orchestrator) Run(ctx context.Context, rec *thought.Record) (path string, err error) {
	logging.Pipeline("[%s] processing %d stages", rec.ID, len(o.stages))
	timer := logging.StartTimer(logging.CategoryPipeline, "run "+rec.ID)
	defer timer.Stop()

	for _, stage := range o.stages {
		agent, _ := o.cfg.Agent(stage.ID)
		generated := o.processor.apply(ctx, rec, agent, stage, o.templates)
		if generated && o.contentMode == config.ContentThreaded {
			o.thread(rec, stage)
		}
	}

	if o.sink == nil {
		return "", nil
	}
	path, err = o.sink.Deliver(rec)
	if err != nil {
		return "", fmt.Errorf("deliver %s: %w", rec.ID, err)
	}
	logging.Pipeline("[%s] completed: %s", rec.ID, path)
	return path, nil
}

// thread makes a model-generated stage result the content the next stage
// sees.
func (o *Orchestrator) thread(rec *thought.Record, stage Stage) {
	text, ok := rec.Result(stage.Name)
	if !ok || strings.TrimSpace(text) == "" {
		return
	}
	rec.Content = text
}
