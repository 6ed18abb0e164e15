package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loaded bundles everything read from <dir> for one reload pass, before
// script-worker construction or match-cache compilation.
type Loaded struct {
	Dir        string
	Global     GlobalConfig
	Catalog    ModelCatalog
	Models     map[string]*ResolvedModel // id -> resolved
	ScriptsDir string
}

// Load reads config.yaml, models/_catalog.yaml, and every flat model file
// under models/, resolving and validating each one. It returns an error
// (without partial state) if any single file is malformed — reload
// atomicity is the caller's (kernel's) responsibility, but a failed Load
// never returns a half-built Loaded.
func Load(dir string) (*Loaded, error) {
	global, err := loadGlobal(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("config.yaml: %w", err)
	}

	catalog, err := loadCatalog(filepath.Join(dir, "models", "_catalog.yaml"))
	if err != nil {
		return nil, fmt.Errorf("models/_catalog.yaml: %w", err)
	}

	modelsDir := filepath.Join(dir, "models")
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var stems []string
	files := make(map[string]string) // stem -> path
	for _, e := range entries {
		if e.IsDir() {
			return nil, fmt.Errorf("models/%s: nested directories are not allowed", e.Name())
		}
		name := e.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		files[stem] = filepath.Join(modelsDir, name)
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	models := make(map[string]*ResolvedModel, len(stems))
	for _, stem := range stems {
		mf, err := loadModelFile(files[stem])
		if err != nil {
			return nil, fmt.Errorf("models/%s: %w", filepath.Base(files[stem]), err)
		}
		resolved, err := Resolve(catalog, mf, stem)
		if err != nil {
			return nil, fmt.Errorf("models/%s: %w", filepath.Base(files[stem]), err)
		}
		if err := Validate(resolved); err != nil {
			return nil, fmt.Errorf("models/%s: %w", filepath.Base(files[stem]), err)
		}
		models[resolved.ID] = resolved
	}

	if err := ValidateAliases(catalog.Aliases, models); err != nil {
		return nil, err
	}

	scriptsDir := filepath.Join(dir, "scripts")
	for _, m := range models {
		if m.Kind != KindScript {
			continue
		}
		if _, err := ResolveScriptPath(scriptsDir, m.Script.File); err != nil {
			return nil, fmt.Errorf("model %s: %w", m.ID, err)
		}
		if _, err := os.Stat(filepath.Join(scriptsDir, m.Script.File)); err != nil {
			return nil, fmt.Errorf("model %s: script file missing: %w", m.ID, err)
		}
		if m.Script.InitFile != "" {
			if _, err := ResolveScriptPath(scriptsDir, m.Script.InitFile); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.ID, err)
			}
			if _, err := os.Stat(filepath.Join(scriptsDir, m.Script.InitFile)); err != nil {
				return nil, fmt.Errorf("model %s: init_file missing: %w", m.ID, err)
			}
		}
	}

	return &Loaded{
		Dir:        dir,
		Global:     *global,
		Catalog:    *catalog,
		Models:     models,
		ScriptsDir: scriptsDir,
	}, nil
}

func loadGlobal(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g GlobalConfig
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &g, nil
}

func loadCatalog(path string) (*ModelCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c ModelCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if c.Schema != 2 {
		return nil, fmt.Errorf("unsupported catalog schema %d (want 2)", c.Schema)
	}
	return &c, nil
}

func loadModelFile(path string) (*ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf ModelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if mf.Kind == "" {
		return nil, fmt.Errorf("missing kind")
	}
	switch mf.Kind {
	case KindStatic, KindScript, KindInteractive:
	default:
		return nil, fmt.Errorf("unknown kind %q", mf.Kind)
	}
	return &mf, nil
}
