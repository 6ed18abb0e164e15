package streaming

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-lab/mockllm/internal/reply"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		chunkChars int
		want       []string
	}{
		{name: "exact multiple", text: "abcdef", chunkChars: 2, want: []string{"ab", "cd", "ef"}},
		{name: "remainder", text: "abcde", chunkChars: 2, want: []string{"ab", "cd", "e"}},
		{name: "zero means no chunking", text: "abcde", chunkChars: 0, want: []string{"abcde"}},
		{name: "negative means no chunking", text: "abcde", chunkChars: -1, want: []string{"abcde"}},
		{name: "empty text", text: "", chunkChars: 4, want: nil},
		{name: "chunk bigger than text", text: "ab", chunkChars: 10, want: []string{"ab"}},
		{name: "multi-byte runes never split", text: "aééb", chunkChars: 2, want: []string{"aé", "éb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkText(tt.text, tt.chunkChars)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkTextCeilDivCount(t *testing.T) {
	text := "0123456789"
	got := ChunkText(text, 3)
	assert.Len(t, got, 4) // ceil(10/3) = 4
	assert.Equal(t, "0123456789", got[0]+got[1]+got[2]+got[3])
}

func decodeSSE(t *testing.T, body string) (payloads []map[string]interface{}, sawDone bool) {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			continue
		}
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(data), &payload))
		payloads = append(payloads, payload)
	}
	return payloads, sawDone
}

func TestStreamFinalEmitsFullSequence(t *testing.T) {
	rec := httptest.NewRecorder()
	r := reply.Rendered{Content: "hello", FinishReason: "stop"}

	require.NoError(t, StreamFinal(rec, "chatcmpl-1", 123, "lab/echo", r, "none", 2, 0))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	payloads, sawDone := decodeSSE(t, rec.Body.String())
	assert.True(t, sawDone)
	// role + ceil(5/2)=3 content + terminal.
	require.Len(t, payloads, 5)

	for _, p := range payloads {
		assert.Equal(t, "chatcmpl-1", p["id"])
		assert.Equal(t, "chat.completion.chunk", p["object"])
		assert.Equal(t, "lab/echo", p["model"])
	}

	first := payloads[0]["choices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "assistant", first["delta"].(map[string]interface{})["role"])
	assert.Nil(t, first["finish_reason"])

	last := payloads[4]["choices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "stop", last["finish_reason"])
}

func TestStreamFinalReasoningFieldMode(t *testing.T) {
	rec := httptest.NewRecorder()
	r := reply.Rendered{Content: "hi", ReasoningField: "because", HasReasoning: true, FinishReason: "stop"}

	require.NoError(t, StreamFinal(rec, "chatcmpl-1", 123, "lab/echo", r, "field", 0, 0))

	payloads, _ := decodeSSE(t, rec.Body.String())
	// role + reasoning + content + terminal.
	require.Len(t, payloads, 4)
	second := payloads[1]["choices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "because", second["delta"].(map[string]interface{})["reasoning_content"])
}
