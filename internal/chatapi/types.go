// Package chatapi defines the OpenAI-compatible wire types shared across
// the handler, static engine, script engine, and streaming pipeline.
package chatapi

import "encoding/json"

// ChatRequest is the raw incoming POST /v1/chat/completions body. Content
// is left as json.RawMessage because OpenAI messages may carry either a
// plain string or a structured content-parts array.
type ChatRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []Message       `json:"messages"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stop        json.RawMessage `json:"stop,omitempty"`
}

// Message is one chat turn. Content is kept raw so scripts receive exactly
// what the client sent.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// TextContent returns the message content as plain text: unwrapped if it
// was a JSON string, otherwise the raw JSON re-serialized as text.
func (m Message) TextContent() string {
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return string(m.Content)
}

// ParsedRequest is the normalized request passed to every backend: model is
// always the public "prefix/name" id the request was served under (the
// default model's public id when the request omitted it), stream always has
// a concrete value.
type ParsedRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stop        json.RawMessage `json:"stop,omitempty"`
}

// LastUserText returns the last user message's text content, falling back
// to the last system message.
func LastUserText(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].TextContent(), true
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "system" {
			return messages[i].TextContent(), true
		}
	}
	return "", false
}

// ScriptMeta carries per-request metadata into the script sandbox.
type ScriptMeta struct {
	RequestID string `json:"request_id"`
	Now       string `json:"now"`
}

// ScriptInput is the object serialized into the script interpreter's value
// space for each call to its exported handle function.
type ScriptInput struct {
	Request json.RawMessage `json:"request"`
	Parsed  ParsedRequest   `json:"parsed"`
	Model   json.RawMessage `json:"model"`
	Meta    ScriptMeta      `json:"meta"`
}

// ScriptOutput is the object a script's handle function returns.
type ScriptOutput struct {
	Content      string  `json:"content"`
	Reasoning    *string `json:"reasoning,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`
	Usage        *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}
