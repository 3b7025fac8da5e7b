package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thoughtflow/internal/pipeline"
	"thoughtflow/internal/prompt"
)

// stagesCmd prints the configured stage order
var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the configured stages, their agents and LLM configs",
	Args:  cobra.NoArgs,
	RunE:  runStages,
}

// stageRow is one line of the stages table.
type stageRow struct {
	Name     string
	Role     string
	LLM      string
	Model    string
	Template bool
}

func runStages(cmd *cobra.Command, args []string) error {
	stages, err := pipeline.ResolveStages(cfg, nil)
	if err != nil {
		return err
	}

	templates := prompt.NewTable(cfg.Templates())
	rows := make([]stageRow, 0, len(stages))
	for _, s := range stages {
		agent, _ := cfg.Agent(s.ID)
		ref := agent.LLMRef()
		l, found := cfg.LLMFor(ref)
		if !found {
			ref += " (built-in)"
		}
		_, hasTemplate := templates.Lookup(s.ID)
		rows = append(rows, stageRow{
			Name:     s.Name,
			Role:     agent.Role,
			LLM:      ref,
			Model:    l.Tag() + ":" + l.Model,
			Template: hasTemplate,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), stagesTable(rows))
	return nil
}
