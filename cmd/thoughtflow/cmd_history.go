package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"thoughtflow/internal/store"
)

var historyLimit int

// historyCmd lists processed thoughts from the ledger
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently processed thoughts",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Ledger.Disabled {
		return errors.New("the ledger is disabled (ledger.disabled in the agents config)")
	}

	l, err := store.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer l.Close()

	entries, err := l.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No processed thoughts yet.")
		return nil
	}
	fmt.Fprintln(out, historyTable(entries))
	return nil
}
