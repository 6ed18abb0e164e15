// Package reply holds the Reply type shared by all three backends and the
// reasoning-mode / usage-estimation policy applied to it before rendering.
package reply

import (
	"github.com/llm-lab/mockllm/internal/chatapi"
	"github.com/llm-lab/mockllm/internal/config"
)

// Reply is the uniform output of the static, script, and interactive
// backends before reasoning-mode policy or usage estimation is applied.
type Reply struct {
	Content      string
	Reasoning    string
	HasReasoning bool
	FinishReason string
	Usage        *Usage
}

// Usage is the synthetic token accounting surfaced when include_usage is on.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Rendered is a Reply after reasoning-mode policy has been applied: Content
// is what the client sees as message content (possibly <think>-prefixed),
// ReasoningField is non-empty only under mode=field.
type Rendered struct {
	Content        string
	ReasoningField string
	HasReasoning   bool
	FinishReason   string
	Usage          *Usage
}

// ApplyReasoning applies the configured reasoning-mode policy:
//   - none: drop reasoning, content unchanged.
//   - prefix: emit "<think>{reasoning}</think>\n{content}", no reasoning field.
//   - field: content unchanged, reasoning exposed separately.
func ApplyReasoning(r Reply, mode config.ReasoningMode) Rendered {
	out := Rendered{Content: r.Content, FinishReason: r.FinishReason, Usage: r.Usage}
	if !r.HasReasoning {
		return out
	}
	switch mode.Normalize() {
	case config.ReasoningPrefix:
		out.Content = "<think>" + r.Reasoning + "</think>\n" + r.Content
	case config.ReasoningField:
		out.ReasoningField = r.Reasoning
		out.HasReasoning = true
	case config.ReasoningNone:
		// content unchanged, reasoning dropped.
	}
	return out
}

// EstimateTokens is the mock server's deliberately cheap token estimate:
// ceil(byteLen/4). It is not a tokenizer.
func EstimateTokens(byteLen int) int {
	return (byteLen + 3) / 4
}

// EstimateUsage estimates prompt and completion tokens from the byte length
// of each message's role plus its text content, and the rendered
// completion content.
func EstimateUsage(messages []chatapi.Message, content string) *Usage {
	promptBytes := 0
	for _, m := range messages {
		promptBytes += len(m.Role) + len(m.TextContent())
	}
	prompt := EstimateTokens(promptBytes)
	completion := EstimateTokens(len(content))
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
