package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"thoughtflow/internal/llm"
	"thoughtflow/internal/pipeline"
	"thoughtflow/internal/store"
	"thoughtflow/internal/thought"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// recordMarkdown lays out a processed record: the captured text, then one
// section per stage in run order.
func recordMarkdown(rec *thought.Record, stages []pipeline.Stage, path string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Thought %s\n\n", rec.ID)
	fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(rec.OriginalContent), "\n", "\n> "))

	for _, s := range stages {
		text, ok := rec.Result(s.Name)
		if !ok {
			continue
		}
		heading := s.Name
		if llm.IsError(text) {
			heading += " (failed)"
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", heading, strings.TrimSpace(text))
	}

	if path != "" {
		fmt.Fprintf(&b, "---\n\nSaved to `%s`\n", path)
	}
	return b.String()
}

// renderRecord prints a processed record, as terminal markdown unless
// plain is set or rendering fails.
func renderRecord(w io.Writer, rec *thought.Record, stages []pipeline.Stage, path string, plain bool) error {
	md := recordMarkdown(rec, stages, path)
	if !plain {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			if rendered, err := renderer.Render(md); err == nil {
				md = rendered
			}
		}
	}
	_, err := io.WriteString(w, md)
	return err
}

// printOutcome prints the one-line summary of a record the watcher handled.
func printOutcome(w io.Writer, o pipeline.Outcome) {
	name := o.Record.OriginalFilename
	if name == "" {
		name = o.Record.ID
	}
	if o.Err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", errorStyle.Render("x"), name, o.Err)
		return
	}

	var failed int
	for _, text := range o.Record.Results {
		if llm.IsError(text) {
			failed++
		}
	}
	summary := fmt.Sprintf("%s %s -> %s", okStyle.Render("ok"), name, o.Path)
	if failed > 0 {
		summary += fmt.Sprintf(" (%d stage(s) failed)", failed)
	}
	fmt.Fprintln(w, summary)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// historyTable renders ledger entries newest first.
func historyTable(entries []store.Entry) string {
	t := newTable("PROCESSED", "ID", "SOURCE", "STAGES", "OUTPUT")
	for _, e := range entries {
		source := e.SourcePath
		if source == "" {
			source = "-"
		}
		t.Row(
			e.ProcessedAt.Local().Format(time.DateTime),
			e.ThoughtID,
			source,
			strconv.Itoa(len(e.Stages)),
			e.OutputPath,
		)
	}
	return t.Render()
}

// stagesTable renders the stage list in run order.
func stagesTable(rows []stageRow) string {
	t := newTable("#", "STAGE", "ROLE", "LLM CONFIG", "MODEL", "TEMPLATE")
	for i, r := range rows {
		template := "yes"
		if !r.Template {
			template = "no (skipped)"
		}
		t.Row(strconv.Itoa(i+1), r.Name, r.Role, r.LLM, r.Model, template)
	}
	return t.Render()
}

// syncWriter serializes writes from the worker and the command goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
