package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"thoughtflow/internal/capture"
	"thoughtflow/internal/logging"
	"thoughtflow/internal/pipeline"
	"thoughtflow/internal/thought"
)

// workerQueue bounds how many captured records wait for the worker.
const workerQueue = 64

var watchOnce bool

// watchCmd processes files dropped into the capture folder
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process files dropped into the capture folder",
	Long: `Watch the capture folder and run every new file through the pipeline.

Files already in the folder are processed first. Files whose name starts
with "meta_" or "." are ignored, and a file already processed with the
same content is not processed again. Stop with Ctrl+C; the thought being
processed at that moment is finished first.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, pipelineStageIDs())
	if err != nil {
		return err
	}
	defer a.Close()

	out := &syncWriter{w: cmd.OutOrStdout()}
	dir := cfg.Folders.CaptureDir()

	if watchOnce {
		return sweepOnce(cmd.Context(), a, dir, out)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := pipeline.NewWorker(a.orch, workerQueue, func(o pipeline.Outcome) {
		printOutcome(out, o)
	})
	watcher, err := capture.NewWatcher(dir, worker.Submit,
		capture.WithSettle(cfg.SettleDuration()),
		capture.WithSkip(a.seen),
	)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		if err := watcher.Start(gctx); err != nil {
			return err
		}
		n, err := watcher.Sweep(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sweep %s: %w", dir, err)
		}
		fmt.Fprintf(out, "Watching %s (%d existing file(s) queued). Press Ctrl+C to stop.\n", dir, n)
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	watcher.Stop()

	ws, cs := worker.Stats(), watcher.Stats()
	logging.Capture("watch stopped: %d captured, %d skipped, %d errors", cs.Captured, cs.Skipped, cs.Errors)
	fmt.Fprintf(out, "Stopped. %d processed, %d failed.\n", ws.Processed, ws.Failed)
	return err
}

// sweepOnce processes the files already in dir on the calling goroutine.
func sweepOnce(ctx context.Context, a *app, dir string, out *syncWriter) error {
	var failed int
	handle := func(ctx context.Context, rec *thought.Record) error {
		path, err := a.orch.Run(ctx, rec)
		printOutcome(out, pipeline.Outcome{Record: rec, Path: path, Err: err})
		if err != nil {
			failed++
		}
		return err
	}

	n, err := capture.ProcessExisting(ctx, dir, handle, a.seen)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Processed %d file(s) from %s, %d failed.\n", n, dir, failed)
	return nil
}
