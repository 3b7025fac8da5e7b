package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtflow/internal/config"
	"thoughtflow/internal/output"
	"thoughtflow/internal/pipeline"
	"thoughtflow/internal/thought"
)

// fakeOllama answers /api/generate with the first line of the prompt and
// counts calls.
func fakeOllama(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		first, _, _ := strings.Cut(req.Prompt, "\n")
		json.NewEncoder(w).Encode(map[string]any{"response": "ok: " + first, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// workspace is a temp config pair pointing at a fake backend.
type workspace struct {
	agents string
	llms   string
	base   string
}

func (ws workspace) captureDir() string { return filepath.Join(ws.base, "capture") }
func (ws workspace) connectDir() string { return filepath.Join(ws.base, "connect") }

func (ws workspace) args(extra ...string) []string {
	return append([]string{"--agents-config", ws.agents, "--llm-config", ws.llms}, extra...)
}

// countOutputs is safe to call from a polling goroutine.
func (ws workspace) countOutputs() int {
	paths, _ := filepath.Glob(filepath.Join(ws.connectDir(), "processed_*.json"))
	return len(paths)
}

// outputs reads every processed record in the connect folder.
func (ws workspace) outputs(t *testing.T) []*thought.Record {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(ws.connectDir(), "processed_*.json"))
	require.NoError(t, err)
	var recs []*thought.Record
	for _, p := range paths {
		rec, err := output.Read(p)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func newWorkspace(t *testing.T, backendURL string) workspace {
	t.Helper()
	t.Setenv("OLLAMA_BASE_URL", backendURL)
	t.Setenv("THOUGHTFLOW_BASE_PATH", "")
	t.Setenv("THOUGHTFLOW_LOG_LEVEL", "")

	dir := t.TempDir()
	ws := workspace{
		agents: filepath.Join(dir, "agents.yaml"),
		llms:   filepath.Join(dir, "llm_configs.yaml"),
		base:   filepath.Join(dir, "thoughts"),
	}
	agents := fmt.Sprintf("folders:\n  base: %s\npipeline:\n  settle: 20ms\nlogging:\n  level: error\n", ws.base)
	llms := fmt.Sprintf("default:\n  adapter: ollama\n  model: llama3.2\n  base_url: %s\n", backendURL)
	require.NoError(t, os.WriteFile(ws.agents, []byte(agents), 0644))
	require.NoError(t, os.WriteFile(ws.llms, []byte(llms), 0644))
	return ws
}

func resetFlags() {
	agentsConfigPath = config.DefaultAgentsPath
	llmConfigPath = config.DefaultLLMPath
	envPath = ""
	verbose = false
	plain = false
	thoughtText = ""
	agentsList = ""
	interactive = false
	watchOnce = false
	historyLimit = 20
	cfg = nil
}

func execute(ctx context.Context, stdin string, args ...string) (string, error) {
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	// Subcommands keep the first context they were run with otherwise.
	for _, c := range rootCmd.Commands() {
		c.SetContext(ctx)
	}
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRoot_NoFlagsPrintsUsage(t *testing.T) {
	srv, calls := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	out, err := execute(context.Background(), "", ws.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--thought")
	assert.Zero(t, calls.Load())
}

func TestRoot_SingleThought(t *testing.T) {
	srv, calls := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	out, err := execute(context.Background(), "", ws.args("--thought", "Buy milk", "--plain")...)
	require.NoError(t, err)
	assert.Contains(t, out, "> Buy milk")
	assert.Contains(t, out, "## Capture")
	assert.Contains(t, out, "## Connect")
	assert.Contains(t, out, "Saved to")
	assert.EqualValues(t, 6, calls.Load())

	recs := ws.outputs(t)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Len(t, rec.Results, 6)
	assert.Len(t, rec.History, 6)
	assert.Equal(t, "connect", rec.ProcessingStage)
	assert.Equal(t, "Buy milk", rec.OriginalContent)

	out, err = execute(context.Background(), "", ws.args("history")...)
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
}

func TestRoot_AgentsSubsetInGivenOrder(t *testing.T) {
	srv, calls := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	_, err := execute(context.Background(), "", ws.args("--thought", "Call mom", "--agents", "Clarify, capture", "--plain")...)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	recs := ws.outputs(t)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, []string{"capture", "clarify"}, rec.StagesRun())
	require.Len(t, rec.History, 2)
	assert.Equal(t, thought.StageInput, rec.History[0].Stage)
	assert.Equal(t, "clarify", rec.History[1].Stage)
	assert.Equal(t, "capture", rec.ProcessingStage)
}

func TestRoot_UnknownAgent(t *testing.T) {
	srv, calls := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	_, err := execute(context.Background(), "", ws.args("--thought", "x", "--agents", "capture,daydream")...)
	require.ErrorIs(t, err, pipeline.ErrUnknownStage)
	assert.Contains(t, err.Error(), "daydream")
	assert.Zero(t, calls.Load())
}

func TestRoot_MissingEnvFile(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	_, err := execute(context.Background(), "", ws.args("--env", filepath.Join(t.TempDir(), "nope.env"), "--thought", "x")...)
	assert.Error(t, err)
}

func TestRoot_EnvFileSuppliesBackend(t *testing.T) {
	srv, calls := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)
	os.Unsetenv("OLLAMA_BASE_URL") // restored by t.Setenv cleanup

	// No base_url in the LLM config; the env file supplies it.
	require.NoError(t, os.WriteFile(ws.llms, []byte("default:\n  adapter: ollama\n"), 0644))
	env := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(env, []byte("OLLAMA_BASE_URL="+srv.URL+"\n"), 0644))

	_, err := execute(context.Background(), "", ws.args("--env", env, "--thought", "x", "--agents", "capture", "--plain")...)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRoot_Interactive(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	stdin := "Buy milk\n\n   \nQuit\nnever processed\n"
	out, err := execute(context.Background(), stdin, ws.args("--interactive", "--plain", "--agents", "capture")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Bye.")
	assert.Equal(t, 1, strings.Count(out, "# Thought "))

	recs := ws.outputs(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "Buy milk", recs[0].OriginalContent)
}

func TestRoot_InteractiveEndsOnEOF(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	_, err := execute(context.Background(), "one\ntwo", ws.args("-i", "--plain", "--agents", "capture")...)
	require.NoError(t, err)
	assert.Len(t, ws.outputs(t), 2)
}

func TestRoot_BackendDownStillWritesRecord(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)
	srv.Close()

	out, err := execute(context.Background(), "", ws.args("--thought", "Buy milk", "--plain")...)
	require.NoError(t, err)
	assert.Contains(t, out, "(failed)")

	recs := ws.outputs(t)
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Results, 6)
	assert.Equal(t, "Buy milk", recs[0].Content)
}

func TestStages(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	out, err := execute(context.Background(), "", ws.args("stages")...)
	require.NoError(t, err)
	for _, want := range []string{"Capture", "Contextualize", "Connect", "Thought Capture Specialist", "default", "ollama:llama3.2"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Capture"), strings.Index(out, "Connect"))
}

func TestHistory_Empty(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	out, err := execute(context.Background(), "", ws.args("history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No processed thoughts yet.")
}

func TestWatch_OnceSkipsProcessedFiles(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	require.NoError(t, os.MkdirAll(ws.captureDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.captureDir(), "milk.txt"), []byte("Buy milk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.captureDir(), "meta_x.txt"), []byte("index"), 0644))

	out, err := execute(context.Background(), "", ws.args("watch", "--once", "--agents", "capture")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 file(s)")
	assert.Contains(t, out, "milk.txt ->")

	out, err = execute(context.Background(), "", ws.args("watch", "--once", "--agents", "capture")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 0 file(s)")
	assert.Len(t, ws.outputs(t), 1)
}

func TestWatch_ProcessesExistingAndNewFiles(t *testing.T) {
	srv, _ := fakeOllama(t)
	ws := newWorkspace(t, srv.URL)

	require.NoError(t, os.MkdirAll(ws.captureDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.captureDir(), "old.txt"), []byte("already here"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "", ws.args("watch")...)
		done <- err
	}()

	require.Eventually(t, func() bool { return ws.countOutputs() == 1 }, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(ws.captureDir(), "new.txt"), []byte("fresh idea"), 0644))
	require.Eventually(t, func() bool { return ws.countOutputs() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	var contents []string
	for _, rec := range ws.outputs(t) {
		assert.Len(t, rec.Results, 6)
		contents = append(contents, rec.OriginalContent)
	}
	assert.ElementsMatch(t, []string{"already here", "fresh idea"}, contents)
}
