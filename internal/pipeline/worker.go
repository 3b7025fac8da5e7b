package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"thoughtflow/internal/logging"
	"thoughtflow/internal/thought"
)

// ErrWorkerStopped is returned by Submit once the worker has exited.
var ErrWorkerStopped = errors.New("worker stopped")

// Runner processes one record. *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, rec *thought.Record) (string, error)
}

// Outcome reports the result of one record.
type Outcome struct {
	Record *thought.Record
	Path   string
	Err    error
}

// WorkerStats counts records handled by a worker.
type WorkerStats struct {
	Processed int64
	Failed    int64
}

// Worker runs records one at a time on a single goroutine. Producers such
// as the startup sweep and the directory watcher call Submit.
type Worker struct {
	runner   Runner
	queue    chan *thought.Record
	done     chan struct{}
	onResult func(Outcome)

	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker returns a worker with a queue of the given capacity. onResult
// may be nil.
func NewWorker(runner Runner, capacity int, onResult func(Outcome)) *Worker {
	if capacity < 0 {
		capacity = 0
	}
	return &Worker{
		runner:   runner,
		queue:    make(chan *thought.Record, capacity),
		done:     make(chan struct{}),
		onResult: onResult,
	}
}

// Submit queues rec, blocking while the queue is full.
func (w *Worker) Submit(ctx context.Context, rec *thought.Record) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.queue <- rec:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued records until ctx is cancelled. A record already
// in progress runs to completion under a context detached from ctx;
// records still queued are dropped. Run returns nil on cancellation and
// must be called only once.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(w.queue); n > 0 {
				logging.PipelineWarn("worker stopping with %d queued records", n)
			}
			return nil
		case rec := <-w.queue:
			w.handle(context.WithoutCancel(ctx), rec)
		}
	}
}

func (w *Worker) handle(ctx context.Context, rec *thought.Record) {
	path, err := w.runner.Run(ctx, rec)
	if err != nil {
		w.failed.Add(1)
		logging.PipelineError("[%s] %v", rec.ID, err)
	} else {
		w.processed.Add(1)
	}
	if w.onResult != nil {
		w.onResult(Outcome{Record: rec, Path: path, Err: err})
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Stats returns the counters so far.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}
