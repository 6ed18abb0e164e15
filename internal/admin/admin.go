// Package admin exposes the side-channel an operator needs to fulfill
// interactive requests: list what's pending, reply to one, and subscribe
// to hub events for a dashboard.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/apperr"
	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/interactive"
)

// Handler bundles the interactive hub behind a small set of admin routes.
type Handler struct {
	hub    *interactive.Hub
	auth   func() config.AuthConfig
	logger *zap.Logger
}

// New constructs an admin Handler. auth supplies the current admin_auth
// config on each request, so a hot reload that rotates the admin key takes
// effect without restarting.
func New(hub *interactive.Hub, auth func() config.AuthConfig, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, logger: logger}
}

// Router builds the interactive admin routes; the caller mounts it under
// /admin.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authMiddleware)
	r.Route("/interactive", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/events", h.handleEvents)
		r.Post("/{id}/reply", h.handleReply)
	})
	return r
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := h.auth()
		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		expected := "Bearer " + cfg.APIKey
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": h.hub.List(),
	})
}

type replyBody struct {
	Content      string `json:"content"`
	Reasoning    string `json:"reasoning"`
	FinishReason string `json:"finish_reason"`
}

func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body replyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperr.WriteHTTP(w, apperr.New(apperr.BadRequest, "invalid reply body"))
		return
	}
	if body.Content == "" {
		apperr.WriteHTTP(w, apperr.New(apperr.BadRequest, "content is required"))
		return
	}
	finishReason := body.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}
	ir := interactive.Reply{
		Content:      body.Content,
		Reasoning:    body.Reasoning,
		HasReasoning: body.Reasoning != "",
		FinishReason: finishReason,
	}
	if !h.hub.Reply(id, ir) {
		apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "no pending request with that id"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams hub activity as SSE, best-effort: a slow client
// simply misses events rather than blocking the hub.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.Internal, "streaming not supported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(ev)
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
