// Package handler wires the chi router and implements the OpenAI-compatible
// chat-completions and model-listing endpoints on top of the kernel,
// dispatching to the static, script, and interactive backends.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/interactive"
	"github.com/llm-lab/mockllm/internal/kernel"
)

// Handler bundles the kernel handle and interactive hub behind chi routes.
type Handler struct {
	kernel *kernel.Handle
	hub    *interactive.Hub
	logger *zap.Logger
}

// New constructs a Handler.
func New(k *kernel.Handle, hub *interactive.Hub, logger *zap.Logger) *Handler {
	return &Handler{kernel: k, hub: hub, logger: logger}
}

// Router builds the chi router: request-id and recovery middleware, bearer
// auth, and the chat/listing endpoints.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.requestLogger)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)
			r.Post("/chat/completions", h.handleChatCompletions)
			r.Get("/models", h.handleListModels)
			// Public ids are "prefix/name"; chi needs both segments named
			// explicitly since {id} alone does not match across a slash.
			r.Get("/models/{prefix}/{name}", h.handleGetModel)
		})
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
