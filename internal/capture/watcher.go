package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"thoughtflow/internal/logging"
)

// DefaultSettle is how long a new file must stay unchanged before it is read.
const DefaultSettle = 500 * time.Millisecond

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesWritten  int
	Captured      int
	Skipped       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches the capture folder (non-recursively) and hands each new
// thought file to a Handler once its writes have settled. A path is handled
// at most once while it exists, including paths handled by Sweep; removing
// or renaming it releases the name.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dir     string
	handler Handler
	skip    SkipFunc
	settle  time.Duration
	pending map[string]time.Time
	claimed map[string]struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	closeOnce sync.Once

	stats Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period before a file is read.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithSkip sets a filter for records handled in an earlier run.
func WithSkip(fn SkipFunc) Option {
	return func(w *Watcher) { w.skip = fn }
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		dir:     dir,
		handler: handler,
		settle:  DefaultSettle,
		pending: make(map[string]time.Time),
		claimed: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched folder.
func (w *Watcher) Dir() string { return w.dir }

// Start creates the folder if needed and begins watching it. It does not
// block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.setRunning(false)
		return fmt.Errorf("failed to create capture folder %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.setRunning(false)
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Capture("watching %s (settle %v)", w.dir, w.settle)

	go w.run(ctx)
	return nil
}

// Sweep handles every qualifying file already in the folder. Files found
// here are not handled again when their events arrive.
func (w *Watcher) Sweep(ctx context.Context) (int, error) {
	n, err := sweep(ctx, w.dir, w.handler, w.skip, w.claim)
	w.mu.Lock()
	w.stats.Captured += n
	w.mu.Unlock()
	return n, err
}

func (w *Watcher) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}

// Stop stops the watcher, waits for the event loop to exit and releases
// the underlying fsnotify watcher. Safe to call more than once and
// without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			logging.CaptureError("error closing watcher: %v", err)
		}
		logging.Capture("watcher stopped")
	})
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.settle / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.CaptureDebug("watcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.CaptureError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !Qualifies(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// A removed or moved-away path is free again; a file later created
	// under the same name is a new thought.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(w.pending, event.Name)
		delete(w.claimed, event.Name)
		return
	}
	if _, done := w.claimed[event.Name]; done {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.stats.FilesCreated++
	case event.Op&fsnotify.Write != 0:
		w.stats.FilesWritten++
	default:
		return
	}

	logging.CaptureDebug("watcher: %s %s", event.Op, event.Name)
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.pending[event.Name] = time.Now()
}

// processSettled reads files whose last event is older than the settle period.
func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.capture(ctx, path)
	}
}

func (w *Watcher) capture(ctx context.Context, path string) {
	rec, err := ReadRecord(path)
	if err != nil {
		// Blank files are left unclaimed so a later write can still capture them.
		if !errors.Is(err, ErrNotQualifying) && !errors.Is(err, fs.ErrNotExist) {
			logging.CaptureWarn("watcher: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return
	}
	if !w.claim(path) {
		return
	}
	if w.skip != nil && w.skip(ctx, rec) {
		logging.CaptureDebug("watcher: %s already processed", filepath.Base(path))
		w.mu.Lock()
		w.stats.Skipped++
		w.mu.Unlock()
		return
	}

	logging.Capture("captured %s as %s", filepath.Base(path), rec.ID)
	if err := w.handler(ctx, rec); err != nil {
		logging.CaptureError("watcher: handler failed for %s: %v", path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	w.mu.Lock()
	w.stats.Captured++
	w.mu.Unlock()
}

// claim marks path as handled and reports whether it was unclaimed.
func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.claimed[path]; ok {
		return false
	}
	w.claimed[path] = struct{}{}
	delete(w.pending, path)
	return true
}
