// Package logging provides categorized zap logging for thoughtflow.
// Every subsystem logs under its own category name so output can be filtered
// by component. Until Initialize is called all categories are silent.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, flag and env handling
	CategoryConfig   Category = "config"   // YAML config loading and fallbacks
	CategoryCapture  Category = "capture"  // Capture folder watcher and sweep
	CategoryPipeline Category = "pipeline" // Stage processing and orchestration
	CategoryLLM      Category = "llm"      // Adapter calls
	CategoryOutput   Category = "output"   // Result writer
	CategoryStore    Category = "store"    // Processed-thought ledger
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the root logger. Safe to call more than once; the last
// call wins.
func Initialize(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") || opts.Format == "text" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l)
	return nil
}

// ParseLevel maps a config level string to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLogger replaces the root logger and drops cached category loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Root returns the root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Get returns (or creates) the named logger for a category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = Root().Sync()
}

func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debugf(format, args...) }

func ConfigWarn(format string, args ...interface{}) { Get(CategoryConfig).Warnf(format, args...) }

func Capture(format string, args ...interface{})      { Get(CategoryCapture).Infof(format, args...) }
func CaptureDebug(format string, args ...interface{}) { Get(CategoryCapture).Debugf(format, args...) }
func CaptureWarn(format string, args ...interface{})  { Get(CategoryCapture).Warnf(format, args...) }
func CaptureError(format string, args ...interface{}) { Get(CategoryCapture).Errorf(format, args...) }

func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Infof(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debugf(format, args...) }
func PipelineWarn(format string, args ...interface{})  { Get(CategoryPipeline).Warnf(format, args...) }
func PipelineError(format string, args ...interface{}) { Get(CategoryPipeline).Errorf(format, args...) }

func LLMDebug(format string, args ...interface{}) { Get(CategoryLLM).Debugf(format, args...) }
func LLMWarn(format string, args ...interface{})  { Get(CategoryLLM).Warnf(format, args...) }
func LLMError(format string, args ...interface{}) { Get(CategoryLLM).Errorf(format, args...) }

func Output(format string, args ...interface{})      { Get(CategoryOutput).Infof(format, args...) }
func OutputError(format string, args ...interface{}) { Get(CategoryOutput).Errorf(format, args...) }

func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debugf(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warnf(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnw(t.op+" slow", "elapsed", elapsed, "threshold", threshold)
	} else {
		Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	}
	return elapsed
}
