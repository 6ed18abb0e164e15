package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/llm-lab/mockllm/internal/apperr"
	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/kernel"
	"github.com/llm-lab/mockllm/internal/resolver"
)

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// handleListModels returns one entry per enabled model and one per enabled
// alias with at least one enabled provider, sorted lexicographically by
// public id.
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	snap := h.kernel.Current()
	objects := buildModelObjects(snap)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"data":   objects,
	})
}

func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	snap := h.kernel.Current()
	id := chi.URLParam(r, "prefix") + "/" + chi.URLParam(r, "name")

	for _, obj := range buildModelObjects(snap) {
		if obj.ID == id {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(obj)
			return
		}
	}
	apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "model not found"))
}

func buildModelObjects(snap *kernel.Snapshot) []modelObject {
	var objects []modelObject

	for _, m := range snap.Models {
		if !m.Enabled {
			continue
		}
		objects = append(objects, modelObject{
			ID:      resolver.PublicIDForModel(m),
			Object:  "model",
			Created: m.Metadata.Created,
			OwnedBy: m.OwnedBy,
		})
	}

	for _, alias := range snap.Aliases {
		created, owned, ok := firstEnabledProvider(alias, snap.Models)
		if !ok {
			continue
		}
		objects = append(objects, modelObject{
			ID:      resolver.PublicIDForAlias(alias, snap.Models),
			Object:  "model",
			Created: created,
			OwnedBy: owned,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	return objects
}

func firstEnabledProvider(alias config.Alias, models map[string]*config.ResolvedModel) (created int64, ownedBy string, ok bool) {
	for _, p := range alias.Providers {
		if m, exists := models[p]; exists && m.Enabled {
			return m.Metadata.Created, resolver.EffectiveOwnedBy(alias, models), true
		}
	}
	return 0, "", false
}
