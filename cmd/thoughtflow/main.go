// Package main is the thoughtflow CLI: it runs captured thoughts through
// the configured LLM stages and writes the processed records out.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thoughtflow/internal/config"
	"thoughtflow/internal/logging"
	"thoughtflow/internal/pipeline"
)

var (
	// Global flags
	agentsConfigPath string
	llmConfigPath    string
	envPath          string
	verbose          bool
	plain            bool

	// Root flags
	thoughtText string
	agentsList  string
	interactive bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "thoughtflow",
	Short: "thoughtflow - staged LLM processing for captured thoughts",
	Long: `thoughtflow takes short captured thoughts through a fixed sequence of
LLM stages (capture, contextualize, clarify, categorize, crystallize,
connect) and writes each processed thought as JSON.

Process one thought with --thought, type thoughts one per line with
--interactive, or run "thoughtflow watch" to process files dropped into
the capture folder.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runRoot,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&agentsConfigPath, "agents-config", config.DefaultAgentsPath, "Agents config file")
	rootCmd.PersistentFlags().StringVar(&llmConfigPath, "llm-config", config.DefaultLLMPath, "LLM config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Environment file (default: .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print results without markdown rendering")

	// Root flags
	rootCmd.Flags().StringVarP(&thoughtText, "thought", "t", "", "Process a single thought")
	rootCmd.Flags().StringVarP(&agentsList, "agents", "a", "", "Comma-separated stage list (default: configured order)")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read thoughts from stdin until exit")

	watchCmd.Flags().StringVarP(&agentsList, "agents", "a", "", "Comma-separated stage list (default: configured order)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Process existing files and exit")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(stagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the env file and config and sets up logging. Broken
// config files fall back to the built-in defaults; a missing --env file
// does not.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envPath); err != nil {
		return err
	}

	loaded, loadErr := config.Load(agentsConfigPath, llmConfigPath)
	if loadErr != nil {
		loaded = config.Default()
	}

	opts := logging.Options{Level: loaded.Logging.Level, Format: loaded.Logging.Format}
	if verbose {
		opts.Level = "debug"
	}
	if err := logging.Initialize(opts); err != nil {
		if ierr := logging.Initialize(logging.Options{Format: opts.Format}); ierr != nil {
			return ierr
		}
		logging.ConfigWarn("%v; logging at info", err)
	}
	if loadErr != nil {
		logging.ConfigWarn("using default configuration: %v", loadErr)
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	logging.BootDebug("config loaded: %d agents, %d llm configs, base %s", len(cfg.Agents), len(cfg.LLMs), cfg.Folders.Base)
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if thoughtText == "" && !interactive {
		return cmd.Usage()
	}

	a, err := newApp(cfg, pipelineStageIDs())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if thoughtText != "" {
		rec, path, err := a.process(ctx, thoughtText)
		if err != nil {
			return err
		}
		return renderRecord(cmd.OutOrStdout(), rec, a.orch.Stages(), path, plain)
	}
	return runInteractive(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout(), plain)
}

// pipelineStageIDs returns the --agents stage list, nil for the
// configured order.
func pipelineStageIDs() []string {
	if agentsList == "" {
		return nil
	}
	return pipeline.SplitStageList(agentsList)
}
