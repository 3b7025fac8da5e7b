// Package pipeline runs thought records through the ordered stage list.
//
// A Processor applies one stage to a record. The Orchestrator folds the
// Processor over every configured stage and hands the finished record to
// a Sink. The Worker serializes records from any number of producers onto
// a single goroutine so adapters are never shared between concurrent runs.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"thoughtflow/internal/config"
)

// ErrUnknownStage is returned when a requested stage has no agent.
var ErrUnknownStage = errors.New("unknown stage")

// Stage pairs a stage id (agent and template key) with its display name.
// The lowercased display name keys the stage's result.
type Stage struct {
	ID   string
	Name string
}

// DefaultStages returns the canonical six-stage sequence.
func DefaultStages() []Stage {
	ids := config.DefaultStageIDs()
	stages := make([]Stage, len(ids))
	for i, id := range ids {
		stages[i] = Stage{ID: id, Name: DisplayName(id)}
	}
	return stages
}

// DisplayName title-cases a stage id.
func DisplayName(id string) string {
	if id == "" {
		return ""
	}
	r := []rune(id)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// SplitStageList parses a comma separated --agents value.
func SplitStageList(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolveStages builds the stage list for a run. An empty ids list means
// the configured order. Every id must name a configured agent; ids are
// matched case-insensitively and normalized to the agent's key.
func ResolveStages(cfg *config.Config, ids []string) ([]Stage, error) {
	if len(ids) == 0 {
		ids = cfg.StageIDs()
	}

	stages := make([]Stage, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		key, ok := agentKey(cfg, id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		stages = append(stages, Stage{ID: key, Name: DisplayName(key)})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, strings.Join(unknown, ", "))
	}
	return stages, nil
}

func agentKey(cfg *config.Config, id string) (string, bool) {
	if _, ok := cfg.Agents[id]; ok {
		return id, true
	}
	for key := range cfg.Agents {
		if strings.EqualFold(key, id) {
			return key, true
		}
	}
	return "", false
}
