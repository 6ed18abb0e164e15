package config

// Default constants applied when a field is left unset after merge.
const (
	DefaultScriptTimeoutMs    = 1500
	DefaultInteractiveTimeout = 15000
	DefaultStaticChunkChars   = 8
	DefaultScriptChunkChars   = 12
	DefaultInteractiveChunkCh = 8
	DefaultAliasOwnedBy       = "llm-lab"
)

// ResolvedModel is a ModelFile after merging catalog defaults, templates
// (in extends order), and the file itself — the shape the kernel actually
// runs. Enabled defaults to true when the source ModelFile leaves it unset.
type ResolvedModel struct {
	ID       string
	OwnedBy  string
	Enabled  bool
	Metadata Metadata
	Kind     string
	Static   StaticConfig
	Script   ScriptConfig
	Interact InteractConfig
}

// EffectiveScriptTimeout returns the configured timeout or its default.
func (r *ResolvedModel) EffectiveScriptTimeout() int {
	if r.Script.TimeoutMs != nil && *r.Script.TimeoutMs > 0 {
		return *r.Script.TimeoutMs
	}
	return DefaultScriptTimeoutMs
}

// EffectiveInteractiveTimeout returns the configured timeout or its default.
func (r *ResolvedModel) EffectiveInteractiveTimeout() int {
	if r.Interact.TimeoutMs != nil && *r.Interact.TimeoutMs > 0 {
		return *r.Interact.TimeoutMs
	}
	return DefaultInteractiveTimeout
}

// EffectiveChunkChars returns the model's configured stream_chunk_chars, or
// the per-kind default when unset. A configured 0 means "no chunking" and is
// returned as-is (the caller distinguishes "unset" from "explicit zero").
func (r *ResolvedModel) EffectiveChunkChars() int {
	var configured *int
	var def int
	switch r.Kind {
	case KindStatic:
		configured = r.Static.StreamChunkChars
		def = DefaultStaticChunkChars
	case KindScript:
		configured = r.Script.StreamChunkChars
		def = DefaultScriptChunkChars
	case KindInteractive:
		configured = r.Interact.StreamChunkChars
		def = DefaultInteractiveChunkCh
	}
	if configured != nil {
		return *configured
	}
	return def
}
