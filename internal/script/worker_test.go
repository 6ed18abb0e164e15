package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-lab/mockllm/internal/chatapi"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWorkerClassicScriptGlobalHandle(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `
function handle(input) {
  return { content: "echo:" + input.meta.request_id, finish_reason: "stop" };
}
`)
	w, err := Start(path, "")
	require.NoError(t, err)
	defer w.Close()

	out, err := w.Call(context.Background(), chatapi.ScriptInput{Meta: chatapi.ScriptMeta{RequestID: "abc"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo:abc", out.Content)
	require.NotNil(t, out.FinishReason)
	assert.Equal(t, "stop", *out.FinishReason)
}

func TestWorkerExportedHandle(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `
export function handle(input) {
  return { content: "hi " + input.parsed.model, reasoning: "thinking" };
}
`)
	w, err := Start(path, "")
	require.NoError(t, err)
	defer w.Close()

	out, err := w.Call(context.Background(), chatapi.ScriptInput{Parsed: chatapi.ParsedRequest{Model: "lab/echo"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hi lab/echo", out.Content)
	require.NotNil(t, out.Reasoning)
	assert.Equal(t, "thinking", *out.Reasoning)
}

func TestWorkerInitFileRunsFirstAndSharesScope(t *testing.T) {
	dir := t.TempDir()
	initPath := writeScript(t, dir, "init.js", `
export function greeting(name) { return "hello " + name; }
`)
	mainPath := writeScript(t, dir, "main.js", `
export function handle(input) {
  return { content: greeting(input.parsed.model) };
}
`)
	w, err := Start(mainPath, initPath)
	require.NoError(t, err)
	defer w.Close()

	out, err := w.Call(context.Background(), chatapi.ScriptInput{Parsed: chatapi.ParsedRequest{Model: "echo"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello echo", out.Content)
}

func TestWorkerMissingHandleFailsStart(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `var x = 1;`)
	_, err := Start(path, "")
	require.Error(t, err)
}

func TestWorkerCallTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `
function handle(input) {
  var start = Date.now();
  while (Date.now() - start < 2000) {}
  return { content: "late" };
}
`)
	w, err := Start(path, "")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Call(context.Background(), chatapi.ScriptInput{}, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script timeout")
}

func TestWorkerSerializesConcurrentCalls(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `
var calls = 0;
function handle(input) {
  calls += 1;
  return { content: String(calls) };
}
`)
	w, err := Start(path, "")
	require.NoError(t, err)
	defer w.Close()

	results := make(chan string, 5)
	for i := 0; i < 5; i++ {
		go func() {
			out, err := w.Call(context.Background(), chatapi.ScriptInput{}, time.Second)
			require.NoError(t, err)
			results <- out.Content
		}()
	}
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		seen[<-results] = true
	}
	assert.Len(t, seen, 5, "a single-threaded interpreter must serialize calls, never double-count")
}
