// Package output persists finished thought records as indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"thoughtflow/internal/logging"
	"thoughtflow/internal/thought"
)

// FileName returns the output file name for a record id.
func FileName(id string) string {
	return "processed_" + id + ".json"
}

// Writer writes records into a directory.
type Writer struct {
	Dir string
}

// NewWriter returns a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Deliver writes rec into the writer's directory.
func (w *Writer) Deliver(rec *thought.Record) (string, error) {
	return Write(rec, w.Dir)
}

// Write serializes rec into dir (created if absent) as
// processed_<id>.json and returns the path. The file is written to a
// temporary name in dir and renamed into place.
func Write(rec *thought.Record, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName(rec.ID))
	tmp, err := os.CreateTemp(dir, ".processed-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to move record into place: %w", err)
	}

	logging.Output("wrote %s (%d bytes)", path, len(data))
	return path, nil
}

// Read loads a record previously written by Write.
func Read(path string) (*thought.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var rec thought.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &rec, nil
}
