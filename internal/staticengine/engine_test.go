package staticengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/match"
)

func mustCache(t *testing.T, cfg *config.StaticConfig) *match.Cache {
	t.Helper()
	c, err := match.Build(cfg)
	require.NoError(t, err)
	return c
}

func TestGenerateRoundRobin(t *testing.T) {
	cfg := &config.StaticConfig{
		Pick: config.PickRoundRobin,
		Rules: []config.Rule{
			{Default: true, Replies: []config.Reply{{Content: "a"}, {Content: "b"}}},
		},
	}
	cache := mustCache(t, cfg)
	counters := NewCounters()

	var got []string
	for i := 0; i < 3; i++ {
		r, err := Generate(cfg, cache, counters, "x", TemplateVars{ModelID: "echo"})
		require.NoError(t, err)
		got = append(got, r.Content)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestGenerateRuleMatching(t *testing.T) {
	cfg := &config.StaticConfig{
		Rules: []config.Rule{
			{When: &config.When{Any: []config.Condition{{Contains: "hi"}}}, Replies: []config.Reply{{Content: "hello"}}},
			{Default: true, Replies: []config.Reply{{Content: "meh"}}},
		},
	}
	cache := mustCache(t, cfg)
	counters := NewCounters()

	r, err := Generate(cfg, cache, counters, "say hi please", TemplateVars{ModelID: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "hello", r.Content)

	r, err = Generate(cfg, cache, counters, "bye", TemplateVars{ModelID: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "meh", r.Content)
}

func TestGenerateWeightedPickAllSameWhenWeightsAbsent(t *testing.T) {
	cfg := &config.StaticConfig{
		Pick: config.PickWeighted,
		Rules: []config.Rule{
			{Default: true, Replies: []config.Reply{{Content: "a"}, {Content: "b"}, {Content: "c"}}},
		},
	}
	cache := mustCache(t, cfg)
	counters := NewCounters()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r, err := Generate(cfg, cache, counters, "x", TemplateVars{ModelID: "echo"})
		require.NoError(t, err)
		seen[r.Content] = true
	}
	assert.Len(t, seen, 3, "uniform weights should eventually hit every reply")
}

func TestGenerateTemplateInterpolation(t *testing.T) {
	cfg := &config.StaticConfig{
		Rules: []config.Rule{
			{Default: true, Replies: []config.Reply{{Content: "model={{model.id}} said={{last_user}}", Reasoning: "req={{request_id}}"}}},
		},
	}
	cache := mustCache(t, cfg)
	counters := NewCounters()

	r, err := Generate(cfg, cache, counters, "ping", TemplateVars{ModelID: "echo", LastUser: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "model=echo said=ping", r.Content)
	assert.True(t, r.HasReasoning)
	assert.True(t, strings.HasPrefix(r.Reasoning, "req="))
	assert.Equal(t, "stop", r.FinishReason)
}

func TestGenerateNoRulesErrors(t *testing.T) {
	cfg := &config.StaticConfig{}
	cache := mustCache(t, cfg)
	_, err := Generate(cfg, cache, NewCounters(), "x", TemplateVars{})
	require.Error(t, err)
}
