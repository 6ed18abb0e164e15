// Package streaming turns a finalized reply into a sequence of server-sent
// chat-completion deltas: an opening role delta, optional reasoning deltas,
// chunked content deltas, a terminal delta, and the [DONE] marker.
package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/llm-lab/mockllm/internal/reply"
)

// Writer emits SSE chat-completion chunks to an http.ResponseWriter,
// flushing after every event so clients see deltas as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	created int64
	model   string
}

// NewWriter prepares SSE headers and returns a Writer, or an error if the
// underlying ResponseWriter cannot be flushed incrementally.
func NewWriter(w http.ResponseWriter, id string, created int64, model string) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Writer{w: w, flusher: flusher, id: id, created: created, model: model}, nil
}

type chunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

func (w *Writer) emit(d delta, finishReason *string) {
	c := chunk{
		ID:      w.id,
		Object:  "chat.completion.chunk",
		Created: w.created,
		Model:   w.model,
		Choices: []choice{{Index: 0, Delta: d, FinishReason: finishReason}},
	}
	data, _ := json.Marshal(c)
	fmt.Fprintf(w.w, "data: %s\n\n", data)
	w.flusher.Flush()
}

// RoleDelta emits the opening {role:"assistant"} delta (step 1).
func (w *Writer) RoleDelta() {
	w.emit(delta{Role: "assistant"}, nil)
}

// Pace sleeps stream_first_delay_ms if positive (step 2).
func (w *Writer) Pace(delayMs int) {
	if delayMs > 0 {
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
	}
}

// ReasoningDeltas emits chunked reasoning_content deltas (step 3).
func (w *Writer) ReasoningDeltas(text string, chunkChars int) {
	for _, part := range ChunkText(text, chunkChars) {
		w.emit(delta{ReasoningContent: part}, nil)
	}
}

// ContentDeltas emits chunked content deltas (step 4).
func (w *Writer) ContentDeltas(text string, chunkChars int) {
	for _, part := range ChunkText(text, chunkChars) {
		w.emit(delta{Content: part}, nil)
	}
}

// Terminal emits the closing delta and the literal [DONE] payload (steps 5-6).
func (w *Writer) Terminal(finishReason string) {
	w.emit(delta{}, &finishReason)
	fmt.Fprint(w.w, "data: [DONE]\n\n")
	w.flusher.Flush()
}

// ChunkText splits text into chunkChars-sized pieces by Unicode scalar,
// never splitting a code point. chunkChars<=0 means "no chunking".
func ChunkText(text string, chunkChars int) []string {
	if chunkChars <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var out []string
	for start := 0; start < len(runes); start += chunkChars {
		end := start + chunkChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// StreamFinal renders a fully-resolved reply.Rendered as a complete SSE
// sequence (non-interactive path: static and script backends).
func StreamFinal(w http.ResponseWriter, id string, created int64, model string, r reply.Rendered, reasoningMode string, chunkChars, firstDelayMs int) error {
	sw, err := NewWriter(w, id, created, model)
	if err != nil {
		return err
	}
	sw.RoleDelta()
	sw.Pace(firstDelayMs)
	if r.HasReasoning && reasoningMode == "field" {
		sw.ReasoningDeltas(r.ReasoningField, chunkChars)
	}
	sw.ContentDeltas(r.Content, chunkChars)
	sw.Terminal(r.FinishReason)
	return nil
}
