package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file locations, relative to the working directory.
const (
	DefaultAgentsPath = "config/agents.yaml"
	DefaultLLMPath    = "config/llm_configs.yaml"
)

// Content modes control what each stage sees as the thought content.
const (
	ContentThreaded = "threaded" // each stage reads the previous stage's output
	ContentOriginal = "original" // each stage reads the captured text
)

// promptSuffix marks keys in the shared prompt table.
const promptSuffix = "_prompt_template"

var (
	// ErrNoAgents is returned by Validate when no agents are configured.
	ErrNoAgents = errors.New("no agents configured")
)

// Config holds all thoughtflow configuration. Agents, folders, prompts,
// pipeline and logging come from the agents file; LLMs from the LLM file.
type Config struct {
	Agents   map[string]AgentConfig `yaml:"agents"`
	Folders  FoldersConfig          `yaml:"folders"`
	Prompts  map[string]string      `yaml:"prompts"`
	Pipeline PipelineConfig         `yaml:"pipeline"`
	Ledger   LedgerConfig           `yaml:"ledger"`
	Logging  LoggingConfig          `yaml:"logging"`

	LLMs map[string]LLMConfig `yaml:"-"`
}

// AgentConfig describes the agent behind one stage.
type AgentConfig struct {
	Role           string `yaml:"role"`
	Goal           string `yaml:"goal"`
	Backstory      string `yaml:"backstory"`
	PromptTemplate string `yaml:"prompt_template"`
	LLMConfig      string `yaml:"llm_config"`
	LLM            string `yaml:"llm"` // older spelling of llm_config
	Verbose        bool   `yaml:"verbose"`
}

// LLMRef returns the name of the LLM config the agent uses.
func (a AgentConfig) LLMRef() string {
	switch {
	case a.LLMConfig != "":
		return a.LLMConfig
	case a.LLM != "":
		return a.LLM
	default:
		return "default"
	}
}

// SystemPrompt builds a system message from the agent's description.
// Empty when the agent has no role.
func (a AgentConfig) SystemPrompt() string {
	if a.Role == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", a.Role)
	if a.Goal != "" {
		fmt.Fprintf(&b, " Your goal: %s.", strings.TrimSuffix(a.Goal, "."))
	}
	if a.Backstory != "" {
		b.WriteString(" ")
		b.WriteString(a.Backstory)
	}
	return b.String()
}

// FoldersConfig maps stages to folders under a base path.
type FoldersConfig struct {
	Base   string            `yaml:"base"`
	Stages map[string]string `yaml:",inline"`
}

// Dir returns the folder for a stage. Stages without an entry use their
// own name as subfolder.
func (f FoldersConfig) Dir(stage string) string {
	sub := stage
	if name, ok := f.Stages[stage]; ok && name != "" {
		sub = name
	}
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(expandHome(f.Base), sub)
}

// CaptureDir is the watched input folder.
func (f FoldersConfig) CaptureDir() string { return f.Dir("capture") }

// ConnectDir is the output folder for finished records.
func (f FoldersConfig) ConnectDir() string { return f.Dir("connect") }

// PipelineConfig configures stage order and content threading.
type PipelineConfig struct {
	Stages      []string `yaml:"stages"`
	ContentMode string   `yaml:"content_mode"`
	Settle      string   `yaml:"settle"` // watcher quiet period before a new file is read
}

// LedgerConfig configures the processed-thought ledger.
type LedgerConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads the agents and LLM config files. A missing file yields the
// defaults for that half; a malformed file is an error.
func Load(agentsPath, llmPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(agentsPath)
	switch {
	case err == nil:
		var fromFile Config
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", agentsPath, err)
		}
		cfg.merge(&fromFile)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", agentsPath, err)
	}

	llms, err := LoadLLMConfigs(llmPath)
	if err != nil {
		return nil, err
	}
	for name, l := range llms {
		cfg.LLMs[name] = l
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// merge overlays the non-empty sections of other onto c.
func (c *Config) merge(other *Config) {
	if len(other.Agents) > 0 {
		c.Agents = other.Agents
	}
	if other.Folders.Base != "" {
		c.Folders.Base = other.Folders.Base
	}
	for stage, dir := range other.Folders.Stages {
		c.Folders.Stages[stage] = dir
	}
	for key, tmpl := range other.Prompts {
		c.Prompts[key] = tmpl
	}
	if len(other.Pipeline.Stages) > 0 {
		c.Pipeline.Stages = other.Pipeline.Stages
	} else if len(other.Agents) > 0 {
		c.Pipeline.Stages = stagesFor(other.Agents)
	}
	if other.Pipeline.ContentMode != "" {
		c.Pipeline.ContentMode = other.Pipeline.ContentMode
	}
	if other.Pipeline.Settle != "" {
		c.Pipeline.Settle = other.Pipeline.Settle
	}
	if other.Ledger.Path != "" {
		c.Ledger.Path = other.Ledger.Path
	}
	c.Ledger.Disabled = c.Ledger.Disabled || other.Ledger.Disabled
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

// stagesFor orders a replaced agent set: canonical stages first, then any
// other agents by name.
func stagesFor(agents map[string]AgentConfig) []string {
	var ids []string
	known := make(map[string]bool)
	for _, id := range DefaultStageIDs() {
		known[id] = true
		if _, ok := agents[id]; ok {
			ids = append(ids, id)
		}
	}
	var extra []string
	for id := range agents {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if base := os.Getenv("THOUGHTFLOW_BASE_PATH"); base != "" {
		c.Folders.Base = base
	}
	if level := os.Getenv("THOUGHTFLOW_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Templates returns the prompt template table keyed by stage id. The shared
// prompts table holds the built-in templates; an agent's own prompt_template
// wins over it.
func (c *Config) Templates() map[string]string {
	out := make(map[string]string, len(c.Prompts)+len(c.Agents))
	for key, tmpl := range c.Prompts {
		out[strings.TrimSuffix(key, promptSuffix)] = tmpl
	}
	for id, agent := range c.Agents {
		if agent.PromptTemplate != "" {
			out[id] = agent.PromptTemplate
		}
	}
	return out
}

// Agent returns the agent configured for a stage id. The lookup is exact
// first, then case-insensitive.
func (c *Config) Agent(id string) (AgentConfig, bool) {
	if a, ok := c.Agents[id]; ok {
		return a, true
	}
	for name, a := range c.Agents {
		if strings.EqualFold(name, id) {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// StageIDs returns the configured stage order.
func (c *Config) StageIDs() []string {
	if len(c.Pipeline.Stages) > 0 {
		return c.Pipeline.Stages
	}
	return DefaultStageIDs()
}

// SettleDuration returns the watcher quiet period.
func (c *Config) SettleDuration() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.Settle)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// LedgerPath returns the ledger database path, relative paths resolved
// against the folders base.
func (c *Config) LedgerPath() string {
	p := c.Ledger.Path
	if p == "" {
		p = filepath.Join(".thoughtflow", "ledger.db")
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(expandHome(c.Folders.Base), p)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return ErrNoAgents
	}

	var problems []string
	switch c.Pipeline.ContentMode {
	case "", ContentThreaded, ContentOriginal:
	default:
		problems = append(problems, fmt.Sprintf("invalid content_mode %q (valid: %s, %s)", c.Pipeline.ContentMode, ContentThreaded, ContentOriginal))
	}
	if c.Pipeline.Settle != "" {
		if _, err := time.ParseDuration(c.Pipeline.Settle); err != nil {
			problems = append(problems, fmt.Sprintf("invalid settle duration %q", c.Pipeline.Settle))
		}
	}

	names := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		names = append(names, id)
	}
	sort.Strings(names)
	for _, id := range names {
		ref := c.Agents[id].LLMRef()
		if _, ok := c.LLMs[ref]; !ok {
			if _, ok := c.LLMs["default"]; !ok {
				problems = append(problems, fmt.Sprintf("agent %s references unknown llm config %q and no default exists", id, ref))
			}
		}
	}
	for name, l := range c.LLMs {
		if l.Timeout == "" {
			continue
		}
		if _, err := time.ParseDuration(l.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("llm config %s: invalid timeout %q", name, l.Timeout))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
