// Package config defines the on-disk YAML schema for the gateway — the
// global config, the model catalog, individual model files, and the
// resolved (merged) model shape the kernel actually runs against.
package config

// ReasoningMode controls how synthetic chain-of-thought text is surfaced
// to the client. "append" and "both" are accepted on parse as legacy
// aliases for "prefix" and "field" respectively, then normalized away.
type ReasoningMode string

const (
	ReasoningNone   ReasoningMode = "none"
	ReasoningPrefix ReasoningMode = "prefix"
	ReasoningField  ReasoningMode = "field"
)

// Normalize maps legacy aliases onto their current spelling.
func (m ReasoningMode) Normalize() ReasoningMode {
	switch m {
	case "append":
		return ReasoningPrefix
	case "both":
		return ReasoningField
	case "":
		return ReasoningNone
	default:
		return m
	}
}

// PickStrategy selects among multiple replies (or alias providers).
type PickStrategy string

const (
	PickRoundRobin PickStrategy = "round_robin"
	PickRandom     PickStrategy = "random"
	PickWeighted   PickStrategy = "weighted"
)

// AuthConfig is a shared-secret bearer check, used for both the public API
// and (when enabled separately) the admin surface.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// ResponsePolicy governs reasoning mode, SSE pacing, and usage accounting.
type ResponsePolicy struct {
	ReasoningMode      ReasoningMode `yaml:"reasoning_mode"`
	StreamFirstDelayMs int           `yaml:"stream_first_delay_ms"`
	IncludeUsage       bool          `yaml:"include_usage"`
	SchemaStrict       bool          `yaml:"schema_strict"`
}

// GlobalConfig is the top-level <dir>/config.yaml document.
type GlobalConfig struct {
	Listen   string         `yaml:"listen"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AuthConfig     `yaml:"admin_auth"`
	Response ResponsePolicy `yaml:"response"`
}

// ModelCatalog is <dir>/models/_catalog.yaml.
type ModelCatalog struct {
	Schema       int                 `yaml:"schema"`
	DefaultModel string              `yaml:"default_model"`
	Aliases      []Alias             `yaml:"aliases"`
	Defaults     ModelDefaults       `yaml:"defaults"`
	Templates    map[string]Template `yaml:"templates"`
}

// Alias fans a public name out to one of several concrete model ids.
type Alias struct {
	Name      string       `yaml:"name"`
	Providers []string     `yaml:"providers"`
	Strategy  PickStrategy `yaml:"strategy"`
	OwnedBy   string       `yaml:"owned_by,omitempty"`
}

// ModelDefaults are catalog-wide fields applied before any template.
type ModelDefaults struct {
	OwnedBy  string          `yaml:"owned_by,omitempty"`
	Static   *StaticConfig   `yaml:"static,omitempty"`
	Script   *ScriptConfig   `yaml:"script,omitempty"`
	Interact *InteractConfig `yaml:"interactive,omitempty"`
}

// Template is a reusable fragment a model file can extend by name.
type Template struct {
	Kind     string          `yaml:"kind,omitempty"`
	Static   *StaticConfig   `yaml:"static,omitempty"`
	Script   *ScriptConfig   `yaml:"script,omitempty"`
	Interact *InteractConfig `yaml:"interactive,omitempty"`
}

// Metadata is descriptive information about a model. OwnedBy overrides the
// catalog default prefix and Created is reported by the /v1/models
// listing; Description and Tags are not interpreted.
type Metadata struct {
	OwnedBy     string   `yaml:"owned_by,omitempty"`
	Created     int64    `yaml:"created,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// ModelFile is a single <dir>/models/<id>.yaml document.
type ModelFile struct {
	Schema   int             `yaml:"schema"`
	ID       string          `yaml:"id,omitempty"`
	Extends  []string        `yaml:"extends,omitempty"`
	Metadata Metadata        `yaml:"metadata,omitempty"`
	Kind     string          `yaml:"kind"`
	Enabled  *bool           `yaml:"enabled,omitempty"`
	Static   *StaticConfig   `yaml:"static,omitempty"`
	Script   *ScriptConfig   `yaml:"script,omitempty"`
	Interact *InteractConfig `yaml:"interactive,omitempty"`
}

const (
	KindStatic      = "static"
	KindScript      = "script"
	KindInteractive = "interactive"
)

// StaticConfig configures the rule-based static reply engine.
type StaticConfig struct {
	Pick             PickStrategy `yaml:"pick,omitempty"`
	StreamChunkChars *int         `yaml:"stream_chunk_chars,omitempty"`
	Rules            []Rule       `yaml:"rules,omitempty"`
}

// Rule is a conditioned set of candidate replies.
type Rule struct {
	Default bool         `yaml:"default,omitempty"`
	When    *When        `yaml:"when,omitempty"`
	Pick    PickStrategy `yaml:"pick,omitempty"`
	Replies []Reply      `yaml:"replies"`
}

// When is the three-way condition combinator evaluated against user text.
type When struct {
	Any  []Condition `yaml:"any,omitempty"`
	All  []Condition `yaml:"all,omitempty"`
	None []Condition `yaml:"none,omitempty"`
}

// Condition is exactly one of its non-zero fields. Regex is given as
// "/pattern/flags"; the other kinds carry a case-sensitivity flag.
type Condition struct {
	Contains      string `yaml:"contains,omitempty"`
	Equals        string `yaml:"equals,omitempty"`
	StartsWith    string `yaml:"starts_with,omitempty"`
	EndsWith      string `yaml:"ends_with,omitempty"`
	Regex         string `yaml:"regex,omitempty"`
	CaseSensitive *bool  `yaml:"case_sensitive,omitempty"`
}

// Reply is one candidate static response.
type Reply struct {
	Content   string `yaml:"content"`
	Reasoning string `yaml:"reasoning,omitempty"`
	Weight    *int   `yaml:"weight,omitempty"`
}

// ScriptConfig configures the embedded script engine for a model.
type ScriptConfig struct {
	File             string `yaml:"file"`
	InitFile         string `yaml:"init_file,omitempty"`
	TimeoutMs        *int   `yaml:"timeout_ms,omitempty"`
	StreamChunkChars *int   `yaml:"stream_chunk_chars,omitempty"`
}

// InteractConfig configures the human-in-the-loop queue for a model.
type InteractConfig struct {
	TimeoutMs        *int    `yaml:"timeout_ms,omitempty"`
	StreamChunkChars *int    `yaml:"stream_chunk_chars,omitempty"`
	FakeReasoning    string  `yaml:"fake_reasoning,omitempty"`
	FallbackText     string  `yaml:"fallback_text"`
}
