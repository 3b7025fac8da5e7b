// Package capture turns files dropped into the capture folder into thought
// records, both by sweeping files already present and by watching for new
// ones.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"thoughtflow/internal/logging"
	"thoughtflow/internal/thought"
)

// MetaPrefix marks files in the capture folder that are not thoughts.
const MetaPrefix = "meta_"

// ErrNotQualifying is returned for paths that are not thought files.
var ErrNotQualifying = errors.New("not a qualifying thought file")

// Handler receives each captured record.
type Handler func(ctx context.Context, rec *thought.Record) error

// SkipFunc reports whether a record was already handled elsewhere, e.g.
// in an earlier run.
type SkipFunc func(ctx context.Context, rec *thought.Record) bool

// Qualifies reports whether a file name is a thought file: not hidden and
// not prefixed with MetaPrefix.
func Qualifies(name string) bool {
	base := filepath.Base(name)
	if base == "" || base == "." || strings.HasPrefix(base, ".") {
		return false
	}
	return !strings.HasPrefix(base, MetaPrefix)
}

// ReadRecord reads a thought file into a new record. Directories,
// non-qualifying names and blank files yield ErrNotQualifying.
func ReadRecord(path string) (*thought.Record, error) {
	if !Qualifies(path) {
		return nil, ErrNotQualifying
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, ErrNotQualifying
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotQualifying, path)
	}
	return thought.New(string(data), path), nil
}

// ProcessExisting hands every qualifying file already in dir to handler,
// in name order, and returns how many were handled without error. Files
// that cannot be read are skipped.
func ProcessExisting(ctx context.Context, dir string, handler Handler, skip SkipFunc) (int, error) {
	return sweep(ctx, dir, handler, skip, nil)
}

// sweep is ProcessExisting with an optional claim hook that lets a
// Watcher share its once-per-path bookkeeping.
func sweep(ctx context.Context, dir string, handler Handler, skip SkipFunc, claim func(string) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if entry.IsDir() || !Qualifies(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		rec, err := ReadRecord(path)
		if err != nil {
			logging.CaptureDebug("sweep: skipping %s: %v", path, err)
			continue
		}
		if claim != nil && !claim(path) {
			continue
		}
		if skip != nil && skip(ctx, rec) {
			logging.CaptureDebug("sweep: %s already processed", path)
			continue
		}
		if err := handler(ctx, rec); err != nil {
			logging.CaptureError("sweep: handler failed for %s: %v", path, err)
			continue
		}
		count++
	}

	logging.Capture("sweep of %s handled %d files", dir, count)
	return count, nil
}
