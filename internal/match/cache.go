package match

import (
	"fmt"

	"github.com/llm-lab/mockllm/internal/config"
)

// CompiledRule pairs a rule's compiled when-clause (nil for the default
// rule) with its index into the original Rules slice.
type CompiledRule struct {
	When  *When
	Index int
}

// Cache is the pre-compiled form of one static model's rule list: every
// conditioned rule in order, plus the index of the unconditional default
// rule to fall back on.
type Cache struct {
	Conditioned []CompiledRule
	DefaultIdx  int
}

// Build compiles a StaticConfig's rules, computing the default-rule index
// once at snapshot build time so request handling never searches for it.
func Build(cfg *config.StaticConfig) (*Cache, error) {
	c := &Cache{DefaultIdx: -1}
	for i, rule := range cfg.Rules {
		isDefault := rule.Default && rule.When == nil
		if isDefault {
			c.DefaultIdx = i
			continue
		}
		w, err := CompileWhen(rule.When)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		c.Conditioned = append(c.Conditioned, CompiledRule{When: w, Index: i})
	}
	if c.DefaultIdx < 0 && len(cfg.Rules) == 1 {
		// Single-rule models with no explicit default use that rule
		// implicitly.
		c.DefaultIdx = 0
		c.Conditioned = nil
	}
	return c, nil
}

// Select returns the index into the original Rules slice of the first
// matching conditioned rule, or the default index if none match.
func (c *Cache) Select(text string) int {
	for _, cr := range c.Conditioned {
		if cr.When.Evaluate(text) {
			return cr.Index
		}
	}
	return c.DefaultIdx
}
