package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultStageIDs(), cfg.StageIDs())
	assert.Len(t, cfg.Agents, 6)
	assert.Equal(t, ContentThreaded, cfg.Pipeline.ContentMode)
	require.NoError(t, cfg.Validate())

	l, found := cfg.LLMFor("default")
	assert.True(t, found)
	assert.Equal(t, "ollama", l.Tag())
}

func TestLoad_MissingFilesFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "agents.yaml"), filepath.Join(dir, "llm.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Agents, 6)
	assert.Contains(t, cfg.LLMs, "default")
}

func TestLoad_ParsesBothFiles(t *testing.T) {
	t.Setenv("THOUGHTFLOW_BASE_PATH", "")
	t.Setenv("THOUGHTFLOW_LOG_LEVEL", "")
	dir := t.TempDir()
	agents := writeFile(t, dir, "agents.yaml", `
agents:
  capture:
    role: Thought Capture Specialist
    goal: Capture
    backstory: You capture.
    llm: fast
    verbose: true
  clarify:
    role: Clarifier
    llm_config: smart
folders:
  base: /data/thoughts
  capture: inbox
  connect: done
prompts:
  capture_prompt_template: "Capture: {thought_content}"
  clarify_prompt_template: "Clarify: {thought_content}"
pipeline:
  stages: [capture, clarify]
  content_mode: original
  settle: 2s
logging:
  level: debug
`)
	llms := writeFile(t, dir, "llm.yaml", `
fast:
  adapter: ollama
  model: qwen2.5:14b
  temperature: 0
smart:
  adapter: LiteLLM
  model: gemini-1.5-flash
  api_key: g-key
  max_tokens: 2048
  timeout: 30s
`)

	cfg, err := Load(agents, llms)
	require.NoError(t, err)

	assert.Equal(t, []string{"capture", "clarify"}, cfg.StageIDs())
	assert.Equal(t, ContentOriginal, cfg.Pipeline.ContentMode)
	assert.Equal(t, 2*time.Second, cfg.SettleDuration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/data/thoughts/inbox", cfg.Folders.CaptureDir())
	assert.Equal(t, "/data/thoughts/done", cfg.Folders.ConnectDir())
	assert.Equal(t, "/data/thoughts/clarify", cfg.Folders.Dir("clarify"))

	capture, ok := cfg.Agent("capture")
	require.True(t, ok)
	assert.Equal(t, "fast", capture.LLMRef())
	assert.True(t, capture.Verbose)

	fast, found := cfg.LLMFor("fast")
	require.True(t, found)
	assert.Equal(t, 0.0, fast.GetTemperature())
	assert.Equal(t, DefaultMaxTokens, fast.GetMaxTokens())

	smart, _ := cfg.LLMFor("SMART")
	assert.Equal(t, "LiteLLM", smart.Tag())
	assert.Equal(t, 2048, smart.GetMaxTokens())
	assert.Equal(t, 30*time.Second, smart.GetTimeout())

	tmpl := cfg.Templates()
	assert.Equal(t, "Capture: {thought_content}", tmpl["capture"])
	assert.Equal(t, "Clarify: {thought_content}", tmpl["clarify"])
}

func TestLoad_AgentSubsetKeepsCanonicalOrder(t *testing.T) {
	dir := t.TempDir()
	agents := writeFile(t, dir, "agents.yaml", `
agents:
  summarize:
    role: Summarizer
  connect:
    role: Knowledge Integrator
  capture:
    role: Thought Capture Specialist
`)
	cfg, err := Load(agents, filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"capture", "connect", "summarize"}, cfg.StageIDs())
}

func TestLoad_SharedPromptsWithoutAgents(t *testing.T) {
	dir := t.TempDir()
	agents := writeFile(t, dir, "agents.yaml", `
prompts:
  capture_prompt_template: "MINE {thought_content}"
`)
	cfg, err := Load(agents, filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)

	tmpl := cfg.Templates()
	assert.Equal(t, "MINE {thought_content}", tmpl["capture"])
	assert.Equal(t, Default().Templates()["clarify"], tmpl["clarify"])
	assert.Len(t, tmpl, len(DefaultStageIDs()))
}

func TestDefault_EveryStageHasSharedTemplate(t *testing.T) {
	cfg := Default()
	for _, id := range DefaultStageIDs() {
		assert.Contains(t, cfg.Prompts, id+promptSuffix)
		assert.Empty(t, cfg.Agents[id].PromptTemplate, id)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	agents := writeFile(t, dir, "agents.yaml", "agents: [unclosed")
	_, err := Load(agents, filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}

func TestLoadLLMConfigs_WrappedTable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "llm.yaml", `
llm_configs:
  default:
    provider: openai
    model: gpt-4o-mini
`)
	table, err := LoadLLMConfigs(path)
	require.NoError(t, err)
	require.Contains(t, table, "default")
	assert.Equal(t, "openai", table["default"].Tag())
}

func TestLLMFor_Fallbacks(t *testing.T) {
	cfg := &Config{LLMs: map[string]LLMConfig{}}
	l, found := cfg.LLMFor("missing")
	assert.False(t, found)
	assert.Equal(t, DefaultModel, l.Model)

	cfg.LLMs["default"] = LLMConfig{Adapter: "litellm", Model: "gpt-4o"}
	l, found = cfg.LLMFor("missing")
	assert.True(t, found)
	assert.Equal(t, "gpt-4o", l.Model)
}

func TestTemplates_AgentTemplateWins(t *testing.T) {
	cfg := &Config{
		Agents:  map[string]AgentConfig{"clarify": {PromptTemplate: "agent {thought_content}"}},
		Prompts: map[string]string{"clarify_prompt_template": "shared {thought_content}", "Connect": "raw key"},
	}
	tmpl := cfg.Templates()
	assert.Equal(t, "agent {thought_content}", tmpl["clarify"])
	assert.Equal(t, "raw key", tmpl["Connect"])
}

func TestAgentSystemPrompt(t *testing.T) {
	a := AgentConfig{Role: "Thought Clarifier", Goal: "Expand thoughts.", Backstory: "You make thoughts coherent."}
	assert.Equal(t, "You are Thought Clarifier. Your goal: Expand thoughts. You make thoughts coherent.", a.SystemPrompt())
	assert.Empty(t, AgentConfig{}.SystemPrompt())
	assert.Equal(t, "default", AgentConfig{}.LLMRef())
}

func TestValidate(t *testing.T) {
	t.Run("no agents", func(t *testing.T) {
		err := (&Config{}).Validate()
		assert.ErrorIs(t, err, ErrNoAgents)
	})

	t.Run("bad content mode and timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Pipeline.ContentMode = "sideways"
		cfg.LLMs["default"] = LLMConfig{Adapter: "ollama", Timeout: "soon"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content_mode")
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("unknown llm ref without default", func(t *testing.T) {
		cfg := Default()
		cfg.LLMs = map[string]LLMConfig{"fast": {Adapter: "ollama"}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown llm config "default"`)
	})
}

func TestLedgerPath(t *testing.T) {
	cfg := Default()
	cfg.Folders.Base = "/srv/thoughts"
	assert.Equal(t, "/srv/thoughts/.thoughtflow/ledger.db", cfg.LedgerPath())

	cfg.Ledger.Path = "/var/lib/tf.db"
	assert.Equal(t, "/var/lib/tf.db", cfg.LedgerPath())
}
