// Package store keeps the processed-thought ledger in SQLite.
//
// The ledger remembers which captured contents have already been run
// through the pipeline, so a restart does not reprocess the capture
// folder, and backs the history command.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"thoughtflow/internal/logging"
	"thoughtflow/internal/thought"

	_ "modernc.org/sqlite"
)

// Entry is one processed thought.
type Entry struct {
	ThoughtID   string
	ContentHash string
	SourcePath  string
	OutputPath  string
	Stages      []string
	ProcessedAt time.Time
}

// Ledger is a SQLite-backed record of processed thoughts.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// HashContent returns the hex SHA-256 of a thought's captured text.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EntryFor builds the ledger entry for a finished record.
func EntryFor(rec *thought.Record, outputPath string, at time.Time) Entry {
	return Entry{
		ThoughtID:   rec.ID,
		ContentHash: HashContent(rec.OriginalContent),
		SourcePath:  rec.OriginalPath,
		OutputPath:  outputPath,
		Stages:      rec.StagesRun(),
		ProcessedAt: at,
	}
}

// Open opens (creating if needed) the ledger at path. ":memory:" gives a
// private in-memory ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dbPath: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("ledger opened at %s", path)
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_thoughts (
		thought_id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		source_path TEXT,
		output_path TEXT,
		stages TEXT,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_processed_hash ON processed_thoughts(content_hash);
	CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_thoughts(processed_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// Path returns the database path.
func (l *Ledger) Path() string { return l.dbPath }

// Seen reports whether the file at sourcePath has been processed with
// this content hash. An edited file has a new hash and is not seen.
func (l *Ledger) Seen(ctx context.Context, hash, sourcePath string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_thoughts WHERE content_hash = ? AND source_path = ?`,
		hash, sourcePath).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n > 0, nil
}

// Record stores an entry, replacing any entry with the same thought id.
// processed_at is kept as unix nanoseconds so it sorts in time order.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	stages, err := json.Marshal(e.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO processed_thoughts
			(thought_id, content_hash, source_path, output_path, stages, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ThoughtID, e.ContentHash, e.SourcePath, e.OutputPath, string(stages),
		e.ProcessedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.ThoughtID, err)
	}
	logging.StoreDebug("recorded %s (%s)", e.ThoughtID, e.ContentHash[:min(12, len(e.ContentHash))])
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT thought_id, content_hash, source_path, output_path, stages, processed_at
		FROM processed_thoughts ORDER BY processed_at DESC, thought_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			source, out, stage sql.NullString
			at                 int64
		)
		if err := rows.Scan(&e.ThoughtID, &e.ContentHash, &source, &out, &stage, &at); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.SourcePath = source.String
		e.OutputPath = out.String
		if stage.Valid && stage.String != "" {
			if err := json.Unmarshal([]byte(stage.String), &e.Stages); err != nil {
				logging.StoreWarn("ledger row %s: bad stages column: %v", e.ThoughtID, err)
			}
		}
		e.ProcessedAt = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_thoughts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
