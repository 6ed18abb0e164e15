package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/llm-lab/mockllm/internal/apperr"
	"github.com/llm-lab/mockllm/internal/chatapi"
	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/interactive"
	"github.com/llm-lab/mockllm/internal/kernel"
	"github.com/llm-lab/mockllm/internal/reply"
	"github.com/llm-lab/mockllm/internal/resolver"
	"github.com/llm-lab/mockllm/internal/staticengine"
	"github.com/llm-lab/mockllm/internal/streaming"
)

const maxRequestBodyBytes = 2 * 1024 * 1024

func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	snap := h.kernel.Current()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var raw chatapi.ChatRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		apperr.WriteHTTP(w, apperr.New(apperr.BadRequest, "invalid request body"))
		return
	}
	if len(raw.Messages) == 0 {
		apperr.WriteHTTP(w, apperr.New(apperr.BadRequest, "messages is required"))
		return
	}

	publicID := raw.Model
	if publicID == "" {
		publicID = defaultPublicID(snap)
		if publicID == "" {
			apperr.WriteHTTP(w, apperr.New(apperr.BadRequest, "model is required"))
			return
		}
	}

	resolved, err := resolver.Resolve(publicID, snap.Aliases, snap.Models, snap.AliasCounters())
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	model := resolved.Model

	parsed := chatapi.ParsedRequest{
		Model:       publicID,
		Messages:    raw.Messages,
		Stream:      raw.Stream,
		Temperature: raw.Temperature,
		TopP:        raw.TopP,
		MaxTokens:   raw.MaxTokens,
		Stop:        raw.Stop,
	}

	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	reasoningMode := snap.Global.Response.ReasoningMode
	chunkChars := model.EffectiveChunkChars()
	firstDelay := snap.Global.Response.StreamFirstDelayMs

	if model.Kind == config.KindInteractive {
		h.handleInteractive(w, r, snap, model, parsed, id, created, string(reasoningMode.Normalize()), chunkChars, firstDelay)
		return
	}

	r0, err := h.generateReply(r.Context(), snap, model, raw, parsed)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	rendered := reply.ApplyReasoning(r0, reasoningMode)
	if rendered.Usage == nil && snap.Global.Response.IncludeUsage {
		rendered.Usage = reply.EstimateUsage(raw.Messages, rendered.Content)
	}

	if raw.Stream {
		if err := streaming.StreamFinal(w, id, created, publicID, rendered, string(reasoningMode.Normalize()), chunkChars, firstDelay); err != nil {
			apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "streaming not supported", err))
		}
		return
	}

	writeCompletion(w, id, created, publicID, rendered)
}

func (h *Handler) generateReply(ctx context.Context, snap *kernel.Snapshot, model *config.ResolvedModel, raw chatapi.ChatRequest, parsed chatapi.ParsedRequest) (reply.Reply, error) {
	switch model.Kind {
	case config.KindStatic:
		userText, _ := chatapi.LastUserText(raw.Messages)
		cache := snap.MatchCache(model.ID)
		counters := snap.StaticCounters(model.ID)
		return staticengine.Generate(&model.Static, cache, counters, userText, staticengine.TemplateVars{
			ModelID:  model.ID,
			LastUser: userText,
		})
	case config.KindScript:
		return h.generateScriptReply(ctx, snap, model, raw, parsed)
	default:
		return reply.Reply{}, apperr.New(apperr.Internal, "unsupported model kind")
	}
}

func (h *Handler) generateScriptReply(ctx context.Context, snap *kernel.Snapshot, model *config.ResolvedModel, raw chatapi.ChatRequest, parsed chatapi.ParsedRequest) (reply.Reply, error) {
	worker := snap.ScriptWorker(model.ID)
	if worker == nil {
		return reply.Reply{}, apperr.New(apperr.Internal, "script engine missing")
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return reply.Reply{}, apperr.Wrap(apperr.Internal, "serialize request failed", err)
	}
	modelJSON, err := json.Marshal(model)
	if err != nil {
		return reply.Reply{}, apperr.Wrap(apperr.Internal, "serialize model failed", err)
	}
	input := chatapi.ScriptInput{
		Request: rawJSON,
		Parsed:  parsed,
		Model:   modelJSON,
		Meta: chatapi.ScriptMeta{
			RequestID: uuid.NewString(),
			Now:       time.Now().UTC().Format(time.RFC3339),
		},
	}

	timeout := time.Duration(model.EffectiveScriptTimeout()) * time.Millisecond
	out, err := worker.Call(ctx, input, timeout)
	if err != nil {
		return reply.Reply{}, err
	}

	finishReason := "stop"
	if out.FinishReason != nil {
		finishReason = *out.FinishReason
	}
	r := reply.Reply{Content: out.Content, FinishReason: finishReason}
	if out.Reasoning != nil {
		r.Reasoning = *out.Reasoning
		r.HasReasoning = true
	}
	if out.Usage != nil {
		r.Usage = &reply.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		}
	}
	return r, nil
}

func (h *Handler) handleInteractive(w http.ResponseWriter, r *http.Request, snap *kernel.Snapshot, model *config.ResolvedModel, parsed chatapi.ParsedRequest, id string, created int64, reasoningMode string, chunkChars, firstDelay int) {
	reqID := uuid.NewString()
	timeoutMs := model.EffectiveInteractiveTimeout()
	req := interactive.Request{
		ID:        reqID,
		Model:     parsed.Model,
		Messages:  parsed.Messages,
		Stream:    parsed.Stream,
		Created:   created,
		TimeoutMs: timeoutMs,
	}
	replyCh := h.hub.Enqueue(req)
	timeout := time.Duration(timeoutMs) * time.Millisecond

	if parsed.Stream {
		h.streamInteractive(w, model, parsed.Model, reqID, replyCh, timeout, id, created, reasoningMode, chunkChars, firstDelay)
		return
	}

	var ir interactive.Reply
	select {
	case ir = <-replyCh:
	case <-time.After(timeout):
		h.hub.Timeout(reqID)
		ir = interactive.Reply{Content: model.Interact.FallbackText, FinishReason: "stop"}
	}

	r0 := reply.Reply{Content: ir.Content, FinishReason: ir.FinishReason}
	if ir.HasReasoning {
		r0.Reasoning = ir.Reasoning
		r0.HasReasoning = true
	}
	if r0.FinishReason == "" {
		r0.FinishReason = "stop"
	}
	rendered := reply.ApplyReasoning(r0, config.ReasoningMode(reasoningMode))
	if rendered.Usage == nil && snap.Global.Response.IncludeUsage {
		rendered.Usage = reply.EstimateUsage(parsed.Messages, rendered.Content)
	}
	writeCompletion(w, id, created, parsed.Model, rendered)
}

func (h *Handler) streamInteractive(w http.ResponseWriter, model *config.ResolvedModel, publicID, reqID string, replyCh <-chan interactive.Reply, timeout time.Duration, id string, created int64, reasoningMode string, chunkChars, firstDelay int) {
	sw, err := streaming.NewWriter(w, id, created, publicID)
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "streaming not supported", err))
		return
	}
	sw.RoleDelta()
	sw.Pace(firstDelay)
	if model.Interact.FakeReasoning != "" && reasoningMode == "field" {
		sw.ReasoningDeltas(model.Interact.FakeReasoning, chunkChars)
	}

	var ir interactive.Reply
	select {
	case ir = <-replyCh:
	case <-time.After(timeout):
		h.hub.Timeout(reqID)
		ir = interactive.Reply{Content: model.Interact.FallbackText, FinishReason: "stop"}
	}
	if ir.FinishReason == "" {
		ir.FinishReason = "stop"
	}

	r0 := reply.Reply{Content: ir.Content, FinishReason: ir.FinishReason}
	if ir.HasReasoning {
		r0.Reasoning = ir.Reasoning
		r0.HasReasoning = true
	}
	rendered := reply.ApplyReasoning(r0, config.ReasoningMode(reasoningMode))
	if rendered.HasReasoning {
		sw.ReasoningDeltas(rendered.ReasoningField, chunkChars)
	}
	sw.ContentDeltas(rendered.Content, chunkChars)
	sw.Terminal(rendered.FinishReason)
}

func defaultPublicID(snap *kernel.Snapshot) string {
	name := snap.Catalog.DefaultModel
	if name == "" {
		return ""
	}
	if alias, ok := snap.Aliases[name]; ok {
		return resolver.PublicIDForAlias(alias, snap.Models)
	}
	if m, ok := snap.Models[name]; ok {
		return resolver.PublicIDForModel(m)
	}
	return ""
}

func writeCompletion(w http.ResponseWriter, id string, created int64, model string, r reply.Rendered) {
	body := map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": created,
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": r.Content},
				"finish_reason": r.FinishReason,
			},
		},
	}
	if r.HasReasoning {
		body["reasoning_content"] = r.ReasoningField
	}
	if r.Usage != nil {
		body["usage"] = r.Usage
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
