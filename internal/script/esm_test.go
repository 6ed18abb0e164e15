package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-lab/mockllm/internal/chatapi"
)

func TestLooksLikeESModule(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{name: "classic script", source: "function handle() {}", want: false},
		{name: "export function", source: "export function handle() {}", want: true},
		{name: "import statement", source: `import { x } from "./y.js";`, want: true},
		{name: "export in comment ignored", source: "// export nothing\nvar x = 1;", want: false},
		{name: "export mid-line ignored", source: `var s = "export";`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeESModule(tt.source))
		})
	}
}

func TestTransformStripsExportKeywords(t *testing.T) {
	l := newModuleLoader(t.TempDir())
	out, err := l.transform("export function handle(x) { return x; }\nexport const answer = 42;\n")
	require.NoError(t, err)
	assert.Contains(t, out, "function handle(x)")
	assert.Contains(t, out, "const answer = 42;")
	assert.NotContains(t, out, "export")
}

func TestTransformLowersDefaultExport(t *testing.T) {
	l := newModuleLoader(t.TempDir())
	out, err := l.transform("export default function(input) { return input; }\n")
	require.NoError(t, err)
	assert.Contains(t, out, "var __default = function(input)")
}

func TestWorkerImportsNamedHelper(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "helper.js", `
export function shout(s) { return s.toUpperCase(); }
`)
	mainPath := writeScript(t, dir, "main.js", `
import { shout } from "./helper.js";

export function handle(input) {
  return { content: shout(input.parsed.model) };
}
`)
	w, err := Start(mainPath, "")
	require.NoError(t, err)
	defer w.Close()

	out, err := w.Call(context.Background(), chatapi.ScriptInput{Parsed: chatapi.ParsedRequest{Model: "lab/echo"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "LAB/ECHO", out.Content)
}

func TestWorkerImportsDefaultHelper(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "helper.js", `
export default function(s) { return "[" + s + "]"; }
`)
	mainPath := writeScript(t, dir, "main.js", `
import wrap from "./helper.js";

export function handle(input) {
  return { content: wrap("x") };
}
`)
	w, err := Start(mainPath, "")
	require.NoError(t, err)
	defer w.Close()

	out, err := w.Call(context.Background(), chatapi.ScriptInput{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "[x]", out.Content)
}

func TestImportRejectsRenaming(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "helper.js", `export function a() {}`)
	mainPath := writeScript(t, dir, "main.js", `
import { a as b } from "./helper.js";
export function handle(input) { return { content: "x" }; }
`)
	_, err := Start(mainPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renaming")
}

func TestImportRejectsMissingExport(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "helper.js", `export function a() {}`)
	mainPath := writeScript(t, dir, "main.js", `
import { missing } from "./helper.js";
export function handle(input) { return { content: "x" }; }
`)
	_, err := Start(mainPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not export")
}

func TestImportRejectsUnreadableModule(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeScript(t, dir, "main.js", `
import { x } from "./nope.js";
export function handle(input) { return { content: "x" }; }
`)
	_, err := Start(mainPath, "")
	require.Error(t, err)
}
