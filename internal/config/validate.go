package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks a single resolved model's structural invariants. It does
// not touch the filesystem — script file existence is the loader's job.
func Validate(r *ResolvedModel) error {
	switch r.Kind {
	case KindStatic:
		return validateStatic(&r.Static)
	case KindScript:
		return validateScript(&r.Script)
	case KindInteractive:
		return validateInteractive(&r.Interact)
	default:
		return fmt.Errorf("model %s: unknown kind %q", r.ID, r.Kind)
	}
}

func validateStatic(s *StaticConfig) error {
	if len(s.Rules) == 0 {
		return fmt.Errorf("static model has no rules")
	}
	defaults := 0
	for i, rule := range s.Rules {
		if len(rule.Replies) == 0 {
			return fmt.Errorf("rule %d has no replies", i)
		}
		isDefault := rule.Default && rule.When == nil
		if rule.Default {
			defaults++
		}
		if !isDefault && whenIsEmpty(rule.When) && len(s.Rules) > 1 {
			return fmt.Errorf("rule %d is not the default rule and has no when clause", i)
		}
	}
	if len(s.Rules) == 1 && defaults == 0 {
		// A single-rule model with no explicit default uses that rule
		// implicitly.
		return nil
	}
	if defaults != 1 {
		return fmt.Errorf("static model must have exactly one default rule, found %d", defaults)
	}
	return nil
}

func whenIsEmpty(w *When) bool {
	return w == nil || (len(w.Any) == 0 && len(w.All) == 0 && len(w.None) == 0)
}

func validateScript(s *ScriptConfig) error {
	if s.File == "" {
		return fmt.Errorf("script model missing file")
	}
	if err := validateRelativePath(s.File); err != nil {
		return fmt.Errorf("script file: %w", err)
	}
	if s.InitFile != "" {
		if err := validateRelativePath(s.InitFile); err != nil {
			return fmt.Errorf("init_file: %w", err)
		}
	}
	return nil
}

func validateInteractive(i *InteractConfig) error {
	if i.FallbackText == "" {
		return fmt.Errorf("interactive model missing fallback_text")
	}
	return nil
}

// validateRelativePath rejects absolute paths and any path that escapes
// its base directory via ".." components.
func validateRelativePath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("%q must be relative", p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "..\\") {
		return fmt.Errorf("%q escapes its base directory", p)
	}
	return nil
}

// ResolveScriptPath joins scriptsDir and rel, verifying the result stays
// within scriptsDir after cleaning.
func ResolveScriptPath(scriptsDir, rel string) (string, error) {
	if err := validateRelativePath(rel); err != nil {
		return "", err
	}
	full := filepath.Join(scriptsDir, rel)
	base := filepath.Clean(scriptsDir)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes scripts directory", rel)
	}
	return full, nil
}

// ValidateAliases checks that every alias has a non-empty provider list and
// that every provider resolves to a known (enabled or not) model id.
func ValidateAliases(aliases []Alias, models map[string]*ResolvedModel) error {
	seen := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		if seen[a.Name] {
			return fmt.Errorf("duplicate alias name %q", a.Name)
		}
		seen[a.Name] = true
		if len(a.Providers) == 0 {
			return fmt.Errorf("alias %q has no providers", a.Name)
		}
		for _, p := range a.Providers {
			if _, ok := models[p]; !ok {
				return fmt.Errorf("alias %q references unknown model %q", a.Name, p)
			}
		}
	}
	return nil
}
