package main

import (
	"context"
	"errors"
	"time"

	"thoughtflow/internal/config"
	"thoughtflow/internal/llm"
	"thoughtflow/internal/logging"
	"thoughtflow/internal/output"
	"thoughtflow/internal/pipeline"
	"thoughtflow/internal/store"
	"thoughtflow/internal/thought"
)

// app wires the pipeline for one command invocation.
type app struct {
	cfg    *config.Config
	pool   *llm.Pool
	orch   *pipeline.Orchestrator
	writer *output.Writer
	ledger *store.Ledger // nil when disabled or unavailable
}

func newApp(cfg *config.Config, stageIDs []string) (*app, error) {
	a := &app{
		cfg:    cfg,
		pool:   llm.NewPool(cfg, nil),
		writer: output.NewWriter(cfg.Folders.ConnectDir()),
	}

	if !cfg.Ledger.Disabled {
		l, err := store.Open(cfg.LedgerPath())
		if err != nil {
			logging.StoreWarn("ledger unavailable, continuing without it: %v", err)
		} else {
			a.ledger = l
		}
	}

	opts := []pipeline.Option{pipeline.WithSink(pipeline.SinkFunc(a.deliver))}
	if len(stageIDs) > 0 {
		stages, err := pipeline.ResolveStages(cfg, stageIDs)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithStages(stages))
	}

	orch, err := pipeline.NewOrchestrator(cfg, a.pool, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

// deliver writes the record and notes it in the ledger. A ledger failure
// does not fail the delivery.
func (a *app) deliver(rec *thought.Record) (string, error) {
	path, err := a.writer.Deliver(rec)
	if err != nil {
		logging.OutputError("[%s] write to %s failed: %v", rec.ID, a.writer.Dir, err)
		return "", err
	}
	if a.ledger != nil {
		if err := a.ledger.Record(context.Background(), store.EntryFor(rec, path, time.Now())); err != nil {
			logging.StoreWarn("[%s] %v", rec.ID, err)
		}
	}
	return path, nil
}

// seen reports whether a captured file was already processed with the
// same content, in this or an earlier run.
func (a *app) seen(ctx context.Context, rec *thought.Record) bool {
	if a.ledger == nil || rec.OriginalPath == "" {
		return false
	}
	ok, err := a.ledger.Seen(ctx, store.HashContent(rec.OriginalContent), rec.OriginalPath)
	if err != nil {
		logging.StoreWarn("ledger lookup for %s: %v", rec.OriginalPath, err)
		return false
	}
	return ok
}

// process runs a literal thought through the pipeline.
func (a *app) process(ctx context.Context, text string) (*thought.Record, string, error) {
	rec := thought.New(text, "")
	path, err := a.orch.Run(ctx, rec)
	return rec, path, err
}

func (a *app) Close() error {
	var errs []error
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	return errors.Join(errs...)
}
