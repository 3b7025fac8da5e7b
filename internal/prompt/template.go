// Package prompt resolves per-stage prompt templates and injects the
// thought content into them.
package prompt

import (
	"sort"
	"strings"
)

// Placeholder is the primary content placeholder in stage templates.
const Placeholder = "{thought_content}"

// fallbackPlaceholders are tried in order when a template lacks Placeholder.
var fallbackPlaceholders = []string{"{{content}}", "{content}"}

// Table maps stage ids to template strings.
type Table struct {
	templates map[string]string
}

// NewTable copies templates into a lookup table.
func NewTable(templates map[string]string) *Table {
	t := &Table{templates: make(map[string]string, len(templates))}
	for id, tmpl := range templates {
		t.templates[id] = tmpl
	}
	return t
}

// Lookup returns the template for a stage: exact match first, then a
// case-insensitive match. Ties among case variants go to the
// lexicographically first key so the result is stable.
func (t *Table) Lookup(stageID string) (string, bool) {
	if t == nil {
		return "", false
	}
	if tmpl, ok := t.templates[stageID]; ok {
		return tmpl, true
	}

	var keys []string
	for id := range t.templates {
		if strings.EqualFold(id, stageID) {
			keys = append(keys, id)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return t.templates[keys[0]], true
}

// Resolve returns the prompt for a stage with content substituted. ok is
// false when no template exists for the stage.
func (t *Table) Resolve(stageID, content string) (prompt string, ok bool) {
	tmpl, ok := t.Lookup(stageID)
	if !ok {
		return "", false
	}
	return Substitute(tmpl, content), true
}

// Substitute replaces the content placeholder in tmpl. When Placeholder is
// absent the first fallback spelling found is used; a template with no
// placeholder at all is returned unchanged.
func Substitute(tmpl, content string) string {
	if strings.Contains(tmpl, Placeholder) {
		return strings.ReplaceAll(tmpl, Placeholder, content)
	}
	for _, p := range fallbackPlaceholders {
		if strings.Contains(tmpl, p) {
			return strings.ReplaceAll(tmpl, p, content)
		}
	}
	return tmpl
}
