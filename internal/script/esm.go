package script

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// looksLikeESModule scans non-comment lines of source for a leading
// "export" or "import" token. A script with no such tokens is treated as a
// classic (non-module) script.
func looksLikeESModule(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "//") || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "/*") {
			continue
		}
		if strings.HasPrefix(t, "export") || strings.HasPrefix(t, "import") {
			return true
		}
	}
	return false
}

var (
	exportDefaultFuncRe  = regexp.MustCompile(`(?m)^export\s+default\s+function\b`)
	exportDefaultOtherRe = regexp.MustCompile(`(?m)^export\s+default\s+`)
	exportDeclRe         = regexp.MustCompile(`(?m)^export\s+(function|const|let|var|class|async function)\b`)
	importNamedRe        = regexp.MustCompile(`(?m)^import\s*\{([^}]*)\}\s*from\s*["']([^"']+)["']\s*;?\s*$`)
	importDefaultRe      = regexp.MustCompile(`(?m)^import\s+([A-Za-z_$][\w$]*)\s+from\s*["']([^"']+)["']\s*;?\s*$`)
	importSideEffectRe   = regexp.MustCompile(`(?m)^import\s*["']([^"']+)["']\s*;?\s*$`)
)

// gojaModuleLoader reads and textually lowers one ES-module-flavored
// script file into a goja-evaluable classic script. goja's stable API does
// not implement import/export syntax, so named/default imports are
// inlined as IIFEs and export keywords are stripped, recursively, starting
// from the entry file. The lowering is line-based and syntactic, not a
// real parser; it covers the forms the example scripts use.
type gojaModuleLoader struct {
	baseDir string
	depth   int
}

const maxModuleDepth = 16

func newModuleLoader(baseDir string) *gojaModuleLoader {
	return &gojaModuleLoader{baseDir: baseDir}
}

// transform lowers one module's source (already read from disk) into a
// classic script body, inlining its imports.
func (l *gojaModuleLoader) transform(source string) (string, error) {
	if l.depth > maxModuleDepth {
		return "", fmt.Errorf("script module import depth exceeds %d (likely a cycle)", maxModuleDepth)
	}

	var out strings.Builder
	for _, line := range strings.Split(source, "\n") {
		t := strings.TrimSpace(line)

		if m := importNamedRe.FindStringSubmatch(line); m != nil {
			inlined, err := l.inlineImport(m[1], m[2])
			if err != nil {
				return "", err
			}
			out.WriteString(inlined)
			out.WriteString("\n")
			continue
		}
		if m := importDefaultRe.FindStringSubmatch(line); m != nil {
			inlined, err := l.inlineDefaultImport(m[1], m[2])
			if err != nil {
				return "", err
			}
			out.WriteString(inlined)
			out.WriteString("\n")
			continue
		}
		if m := importSideEffectRe.FindStringSubmatch(line); m != nil {
			inlined, err := l.inlineSideEffectImport(m[1])
			if err != nil {
				return "", err
			}
			out.WriteString(inlined)
			out.WriteString("\n")
			continue
		}
		if t == "" {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}

		line = exportDefaultFuncRe.ReplaceAllString(line, "var __default = function")
		line = exportDefaultOtherRe.ReplaceAllString(line, "var __default = ")
		line = exportDeclRe.ReplaceAllString(line, "$1")
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (l *gojaModuleLoader) loadAndTransform(rel string) (string, map[string]bool, error) {
	full := filepath.Join(l.baseDir, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return "", nil, fmt.Errorf("import %q: %w", rel, err)
	}
	child := &gojaModuleLoader{baseDir: filepath.Dir(full), depth: l.depth + 1}
	body, err := child.transform(string(data))
	if err != nil {
		return "", nil, err
	}
	names := exportedNames(string(data))
	return body, names, nil
}

// exportedNames collects every top-level name a module exports, by scanning
// its (untransformed) export declarations, so the importer knows what to
// pull out of the IIFE's local scope.
func exportedNames(source string) map[string]bool {
	names := make(map[string]bool)
	re := regexp.MustCompile(`(?m)^export\s+(?:async\s+)?(?:function|const|let|var|class)\s+([A-Za-z_$][\w$]*)`)
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		names[m[1]] = true
	}
	return names
}

// inlineImport handles "import { a, b } from './x.js'". Renaming imports
// ("a as b") are not supported by this textual lowering and are rejected;
// the example/scaffold scripts never use that form.
func (l *gojaModuleLoader) inlineImport(clause, rel string) (string, error) {
	body, exported, err := l.loadAndTransform(rel)
	if err != nil {
		return "", err
	}
	var names []string
	for _, n := range strings.Split(clause, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.Contains(n, " as ") {
			return "", fmt.Errorf("import %q: renaming imports are not supported", rel)
		}
		if !exported[n] {
			return "", fmt.Errorf("import %q: module does not export %q", rel, n)
		}
		names = append(names, n)
	}
	return fmt.Sprintf("var { %s } = (function() {\n%s\nreturn { %s };\n})();",
		strings.Join(names, ", "), body, strings.Join(names, ", ")), nil
}

func (l *gojaModuleLoader) inlineDefaultImport(name, rel string) (string, error) {
	body, _, err := l.loadAndTransform(rel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("var %s = (function() {\n%s\nreturn __default;\n})();", name, body), nil
}

func (l *gojaModuleLoader) inlineSideEffectImport(rel string) (string, error) {
	body, _, err := l.loadAndTransform(rel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(function() {\n%s\n})();", body), nil
}
