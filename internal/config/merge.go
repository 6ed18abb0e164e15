package config

import (
	"fmt"

	"dario.cat/mergo"
)

// Resolve merges catalog defaults, then every template in extends order,
// then the file itself, later values overwriting earlier ones field by
// field. A template whose kind differs from the model's is rejected, and so
// is any template or model-file config block of another kind; catalog
// defaults may carry blocks of every kind and only the matching one applies.
func Resolve(catalog *ModelCatalog, file *ModelFile, stem string) (*ResolvedModel, error) {
	id := file.ID
	if id == "" {
		id = stem
	} else if id != stem {
		return nil, fmt.Errorf("model id %q does not match filename stem %q", id, stem)
	}

	r := &ResolvedModel{
		ID:      id,
		OwnedBy: catalog.Defaults.OwnedBy,
		Enabled: true,
		Kind:    file.Kind,
	}

	// Catalog defaults may carry blocks for every kind at once; only the
	// block matching this model's kind applies, the rest are ignored.
	if err := applyFragment(r, catalog.Defaults.Static, catalog.Defaults.Script, catalog.Defaults.Interact, file.Kind, false); err != nil {
		return nil, fmt.Errorf("merge catalog defaults into %s: %w", id, err)
	}

	for _, name := range file.Extends {
		tmpl, ok := catalog.Templates[name]
		if !ok {
			return nil, fmt.Errorf("model %s extends unknown template %q", id, name)
		}
		if tmpl.Kind != "" && tmpl.Kind != file.Kind {
			return nil, fmt.Errorf("model %s (kind=%s) extends template %q of kind %s", id, file.Kind, name, tmpl.Kind)
		}
		if err := applyFragment(r, tmpl.Static, tmpl.Script, tmpl.Interact, file.Kind, true); err != nil {
			return nil, fmt.Errorf("merge template %q into %s: %w", name, id, err)
		}
	}

	if file.Metadata.OwnedBy != "" {
		r.OwnedBy = file.Metadata.OwnedBy
	}
	r.Metadata = file.Metadata
	if r.OwnedBy == "" {
		r.OwnedBy = DefaultAliasOwnedBy
	}
	if file.Enabled != nil {
		r.Enabled = *file.Enabled
	}

	if err := applyFragment(r, file.Static, file.Script, file.Interact, file.Kind, true); err != nil {
		return nil, fmt.Errorf("merge model file %s: %w", id, err)
	}

	return r, nil
}

// applyFragment merges one layer's kind-specific block into r. When strict,
// a block of a kind other than r.Kind is rejected rather than silently
// ignored — templates and model files may only carry the model's own kind;
// catalog defaults are lax.
func applyFragment(r *ResolvedModel, static *StaticConfig, script *ScriptConfig, interact *InteractConfig, kind string, strict bool) error {
	switch kind {
	case KindStatic:
		if strict && (script != nil || interact != nil) {
			return fmt.Errorf("kind=static but layer supplies a non-static config block")
		}
		if static == nil {
			return nil
		}
		// Deliberately no mergo.WithAppendSlice: Rules/Replies are replaced
		// wholesale by the overriding layer, never deep-merged.
		return mergo.Merge(&r.Static, *static, mergo.WithOverride)
	case KindScript:
		if strict && (static != nil || interact != nil) {
			return fmt.Errorf("kind=script but layer supplies a non-script config block")
		}
		if script == nil {
			return nil
		}
		return mergo.Merge(&r.Script, *script, mergo.WithOverride)
	case KindInteractive:
		if strict && (static != nil || script != nil) {
			return fmt.Errorf("kind=interactive but layer supplies a non-interactive config block")
		}
		if interact == nil {
			return nil
		}
		return mergo.Merge(&r.Interact, *interact, mergo.WithOverride)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}
