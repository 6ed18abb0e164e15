// Package staticengine implements the rule-based static reply backend:
// rule selection against compiled when-clauses, reply pick strategies, and
// template interpolation.
package staticengine

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/match"
	"github.com/llm-lab/mockllm/internal/reply"
)

// Counters holds the round-robin state for one static model, keyed by rule
// index so each rule's reply list cycles independently. It lives inside the
// kernel snapshot and resets on every reload.
type Counters struct {
	mu   sync.Mutex
	next map[int]int
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{next: make(map[int]int)}
}

func (c *Counters) advance(ruleIdx, n int) int {
	if n <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.next[ruleIdx] % n
	c.next[ruleIdx] = (idx + 1) % n
	return idx
}

// TemplateVars are the values substituted into a chosen reply's content
// and reasoning text.
type TemplateVars struct {
	ModelID  string
	LastUser string
}

// Generate runs the full static pipeline: rule selection, reply pick, and
// template interpolation, returning a finalized reply with finish_reason
// "stop" and no usage.
func Generate(cfg *config.StaticConfig, cache *match.Cache, counters *Counters, userText string, vars TemplateVars) (reply.Reply, error) {
	if len(cfg.Rules) == 0 {
		return reply.Reply{}, fmt.Errorf("static model has no rules")
	}
	ruleIdx := cache.Select(userText)
	if ruleIdx < 0 || ruleIdx >= len(cfg.Rules) {
		return reply.Reply{}, fmt.Errorf("no matching or default rule")
	}
	rule := cfg.Rules[ruleIdx]

	pick := rule.Pick
	if pick == "" {
		pick = cfg.Pick
	}
	if pick == "" {
		pick = config.PickRoundRobin
	}

	chosen, err := pickReply(rule.Replies, pick, counters, ruleIdx)
	if err != nil {
		return reply.Reply{}, err
	}

	content := interpolate(chosen.Content, vars)
	r := reply.Reply{Content: content, FinishReason: "stop"}
	if chosen.Reasoning != "" {
		r.Reasoning = interpolate(chosen.Reasoning, vars)
		r.HasReasoning = true
	}
	return r, nil
}

func pickReply(replies []config.Reply, strategy config.PickStrategy, counters *Counters, ruleIdx int) (config.Reply, error) {
	if len(replies) == 0 {
		return config.Reply{}, fmt.Errorf("rule has no replies")
	}
	switch strategy {
	case config.PickRandom:
		n, err := randomIndex(len(replies))
		if err != nil {
			return config.Reply{}, err
		}
		return replies[n], nil
	case config.PickWeighted:
		return pickWeighted(replies)
	default: // round_robin
		idx := counters.advance(ruleIdx, len(replies))
		return replies[idx], nil
	}
}

func pickWeighted(replies []config.Reply) (config.Reply, error) {
	total := 0
	weights := make([]int, len(replies))
	for i, r := range replies {
		w := 1
		if r.Weight != nil && *r.Weight > 1 {
			w = *r.Weight
		}
		weights[i] = w
		total += w
	}
	n, err := randomIndex(total)
	if err != nil {
		return config.Reply{}, err
	}
	for i, w := range weights {
		if n < w {
			return replies[i], nil
		}
		n -= w
	}
	return replies[len(replies)-1], nil
}

func randomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("no candidates to choose from")
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random selection failed: %w", err)
	}
	return int(idx.Int64()), nil
}

// interpolate substitutes {{model.id}}, {{now}}, {{request_id}}, and
// {{last_user}} into text.
func interpolate(text string, vars TemplateVars) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	replacer := strings.NewReplacer(
		"{{model.id}}", vars.ModelID,
		"{{now}}", time.Now().UTC().Format(time.RFC3339),
		"{{request_id}}", uuid.NewString(),
		"{{last_user}}", vars.LastUser,
	)
	return replacer.Replace(text)
}
