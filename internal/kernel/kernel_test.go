package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
listen: "127.0.0.1:0"
response:
  reasoning_mode: none
`)
	writeFile(t, filepath.Join(dir, "models", "_catalog.yaml"), `
schema: 2
default_model: echo
defaults:
  owned_by: lab
`)
	writeFile(t, filepath.Join(dir, "models", "echo.yaml"), `
schema: 2
kind: static
static:
  rules:
    - default: true
      replies:
        - content: "one"
`)
	writeFile(t, filepath.Join(dir, "scripts", "main.js"), `
function handle(input) { return { content: "scripted" }; }
`)
	return dir
}

func TestNewBuildsSnapshot(t *testing.T) {
	dir := setupConfigDir(t)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	snap := h.Current()
	require.NotNil(t, snap)
	require.Contains(t, snap.Models, "echo")
	assert.NotNil(t, snap.MatchCache("echo"))
	assert.NotNil(t, snap.StaticCounters("echo"))
	assert.Equal(t, dir, snap.ConfigDir)
}

func TestNewStartsScriptWorkers(t *testing.T) {
	dir := setupConfigDir(t)
	writeFile(t, filepath.Join(dir, "models", "scripty.yaml"), `
schema: 2
kind: script
script:
  file: main.js
`)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	defer h.Current().closeWorkers()

	assert.NotNil(t, h.Current().ScriptWorker("scripty"))
	assert.Nil(t, h.Current().ScriptWorker("echo"))
}

func TestNewFailsOnBrokenScriptModel(t *testing.T) {
	dir := setupConfigDir(t)
	writeFile(t, filepath.Join(dir, "scripts", "broken.js"), `var x = 1;`)
	writeFile(t, filepath.Join(dir, "models", "scripty.yaml"), `
schema: 2
kind: script
script:
  file: broken.js
`)
	_, err := New(dir, zap.NewNop())
	require.Error(t, err)
}

func TestReloadPicksUpModelChanges(t *testing.T) {
	dir := setupConfigDir(t)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "models", "echo.yaml"), `
schema: 2
kind: static
static:
  rules:
    - default: true
      replies:
        - content: "two"
`)

	outcome, err := h.Reload()
	require.NoError(t, err)
	assert.True(t, outcome.Reloaded)
	assert.Equal(t, "two", outcome.Snapshot.Models["echo"].Static.Rules[0].Replies[0].Content)
	assert.Same(t, outcome.Snapshot, h.Current())
}

func TestReloadDebouncedWithinWindow(t *testing.T) {
	dir := setupConfigDir(t)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	first, err := h.Reload()
	require.NoError(t, err)
	require.True(t, first.Reloaded)

	second, err := h.Reload()
	require.NoError(t, err)
	assert.False(t, second.Reloaded)
	assert.Same(t, first.Snapshot, second.Snapshot, "debounced reload must leave the published snapshot untouched")
	assert.Same(t, first.Snapshot, h.Current())
}

func TestReloadFailureRetainsPriorSnapshot(t *testing.T) {
	dir := setupConfigDir(t)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	prior := h.Current()

	writeFile(t, filepath.Join(dir, "models", "echo.yaml"), `
schema: 2
kind: static
static:
  rules: []
`)

	_, err = h.Reload()
	require.Error(t, err)
	assert.Same(t, prior, h.Current(), "failed reload must not swap the snapshot")
	assert.Equal(t, "one", h.Current().Models["echo"].Static.Rules[0].Replies[0].Content)
}

func TestSnapshotAliasMapBuiltFromCatalog(t *testing.T) {
	dir := setupConfigDir(t)
	writeFile(t, filepath.Join(dir, "models", "_catalog.yaml"), `
schema: 2
defaults:
  owned_by: lab
aliases:
  - name: fast
    providers: [echo]
    strategy: round_robin
`)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	require.Contains(t, h.Current().Aliases, "fast")
	assert.Equal(t, []string{"echo"}, h.Current().Aliases["fast"].Providers)
	assert.Equal(t, config.PickRoundRobin, h.Current().Aliases["fast"].Strategy)
}

func TestSnapshotDrainDelayCoversLongestScriptTimeout(t *testing.T) {
	dir := setupConfigDir(t)
	writeFile(t, filepath.Join(dir, "models", "scripty.yaml"), `
schema: 2
kind: script
script:
  file: main.js
  timeout_ms: 3000
`)
	h, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	defer h.Current().closeWorkers()

	assert.GreaterOrEqual(t, h.Current().drainDelay().Milliseconds(), int64(3000))
}
