// Package thought defines the record threaded through the processing pipeline.
package thought

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageInput is the processing_stage of a record no stage has touched yet.
const StageInput = "input"

// resultsSuffix is appended to a stage key to name its result field on disk.
const resultsSuffix = "_results"

// HistoryEntry records the stage that was active before a transition.
type HistoryEntry struct {
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the unit of work carried through every stage.
// Results maps a lowercased stage name to that stage's output.
type Record struct {
	ID               string
	Timestamp        time.Time
	OriginalFilename string
	OriginalPath     string
	OriginalContent  string
	Content          string
	ProcessingStage  string
	History          []HistoryEntry
	Results          map[string]string
}

// New creates a record for captured text. path may be empty for thoughts
// that did not come from a file.
func New(content, path string) *Record {
	now := time.Now()
	r := &Record{
		ID:              NewID(now),
		Timestamp:       now,
		OriginalPath:    path,
		OriginalContent: content,
		Content:         content,
		ProcessingStage: StageInput,
		History:         []HistoryEntry{},
		Results:         make(map[string]string),
	}
	if path != "" {
		r.OriginalFilename = filepath.Base(path)
	}
	return r
}

// NewID returns a time-ordered id with a random suffix so two captures in
// the same second do not collide.
func NewID(t time.Time) string {
	return fmt.Sprintf("thought_%s_%s", t.UTC().Format("20060102T150405"), uuid.New().String()[:8])
}

// Advance appends the current stage to the history and makes stage current.
func (r *Record) Advance(stage string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Stage: r.ProcessingStage, Timestamp: at})
	r.ProcessingStage = stage
}

// SetResult stores a stage's output under its lowercased name.
func (r *Record) SetResult(stage, text string) {
	if r.Results == nil {
		r.Results = make(map[string]string)
	}
	r.Results[strings.ToLower(stage)] = text
}

// Result returns a stage's output and whether the stage has run.
func (r *Record) Result(stage string) (string, bool) {
	text, ok := r.Results[strings.ToLower(stage)]
	return text, ok
}

// ResultKey is the field name a stage's result is stored under on disk.
func ResultKey(stage string) string {
	return strings.ToLower(stage) + resultsSuffix
}

// StagesRun returns the stages with results, sorted by name.
func (r *Record) StagesRun() []string {
	stages := make([]string, 0, len(r.Results))
	for s := range r.Results {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	return stages
}

type recordJSON struct {
	ID               string         `json:"id"`
	Timestamp        time.Time      `json:"timestamp"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	OriginalPath     string         `json:"original_path,omitempty"`
	OriginalContent  string         `json:"original_content"`
	Content          string         `json:"content"`
	ProcessingStage  string         `json:"processing_stage"`
	History          []HistoryEntry `json:"processing_history"`
}

// MarshalJSON writes the fixed fields followed by one <stage>_results
// field per executed stage.
func (r *Record) MarshalJSON() ([]byte, error) {
	history := r.History
	if history == nil {
		history = []HistoryEntry{}
	}
	base, err := json.Marshal(recordJSON{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		OriginalFilename: r.OriginalFilename,
		OriginalPath:     r.OriginalPath,
		OriginalContent:  r.OriginalContent,
		Content:          r.Content,
		ProcessingStage:  r.ProcessingStage,
		History:          history,
	})
	if err != nil {
		return nil, err
	}
	if len(r.Results) == 0 {
		return base, nil
	}

	var b strings.Builder
	b.Write(base[:len(base)-1])
	for _, stage := range r.StagesRun() {
		key, err := json.Marshal(ResultKey(stage))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Results[stage])
		if err != nil {
			return nil, err
		}
		b.WriteByte(',')
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON reads the fixed fields and collects every <stage>_results
// field back into Results.
func (r *Record) UnmarshalJSON(data []byte) error {
	var base recordJSON
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Record{
		ID:               base.ID,
		Timestamp:        base.Timestamp,
		OriginalFilename: base.OriginalFilename,
		OriginalPath:     base.OriginalPath,
		OriginalContent:  base.OriginalContent,
		Content:          base.Content,
		ProcessingStage:  base.ProcessingStage,
		History:          base.History,
		Results:          make(map[string]string),
	}
	if r.History == nil {
		r.History = []HistoryEntry{}
	}
	for key, raw := range fields {
		stage, ok := strings.CutSuffix(key, resultsSuffix)
		if !ok || stage == "" {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Results[stage] = text
	}
	return nil
}
