package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/llm-lab/mockllm/internal/apperr"
)

// authMiddleware enforces the shared-secret bearer check when the current
// snapshot's auth config is enabled. The header is compared verbatim, with
// no whitespace trimming.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := h.kernel.Current().Global.Auth
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
