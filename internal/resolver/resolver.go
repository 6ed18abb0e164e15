// Package resolver turns "prefix/name" public identifiers into a concrete
// model, honoring alias round-robin/random provider selection.
package resolver

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/llm-lab/mockllm/internal/apperr"
	"github.com/llm-lab/mockllm/internal/config"
)

// AliasCounters holds round-robin state per alias name, reset every reload.
type AliasCounters struct {
	mu   sync.Mutex
	next map[string]int
}

// NewAliasCounters creates an empty counter set.
func NewAliasCounters() *AliasCounters {
	return &AliasCounters{next: make(map[string]int)}
}

func (c *AliasCounters) advance(name string, n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.next[name] % n
	c.next[name] = (idx + 1) % n
	return idx
}

// Resolved is the outcome of resolving a public identifier: the concrete
// model plus the public id under which it was requested (so the response
// can echo an alias name rather than the concrete model id).
type Resolved struct {
	Model    *config.ResolvedModel
	PublicID string
}

// Split parses "prefix/name" into its two non-empty halves.
func Split(publicID string) (prefix, name string, err error) {
	idx := strings.Index(publicID, "/")
	if idx <= 0 || idx == len(publicID)-1 {
		return "", "", fmt.Errorf("model id %q is not in prefix/name form", publicID)
	}
	return publicID[:idx], publicID[idx+1:], nil
}

// EffectiveOwnedBy computes an alias's effective prefix: the alias's own
// owned_by if set, else the first enabled provider's owned_by, else the
// default fallback.
func EffectiveOwnedBy(alias config.Alias, models map[string]*config.ResolvedModel) string {
	if alias.OwnedBy != "" {
		return alias.OwnedBy
	}
	for _, p := range alias.Providers {
		if m, ok := models[p]; ok && m.Enabled {
			return m.OwnedBy
		}
	}
	return config.DefaultAliasOwnedBy
}

// Resolve maps a public identifier to a concrete model: aliases are
// checked first (under their effective prefix, selecting a provider by the
// alias strategy), then direct model ids under their owned_by prefix.
func Resolve(publicID string, aliases map[string]config.Alias, models map[string]*config.ResolvedModel, counters *AliasCounters) (Resolved, error) {
	prefix, name, err := Split(publicID)
	if err != nil {
		return Resolved{}, apperr.Wrap(apperr.BadRequest, err.Error(), err)
	}

	if alias, ok := aliases[name]; ok {
		effectivePrefix := EffectiveOwnedBy(alias, models)
		if effectivePrefix == prefix {
			providerID, err := selectProvider(alias, models, counters)
			if err != nil {
				return Resolved{}, apperr.Wrap(apperr.NotFound, "model not found", err)
			}
			return Resolved{Model: models[providerID], PublicID: publicID}, nil
		}
	}

	if m, ok := models[name]; ok && m.Enabled && m.OwnedBy == prefix {
		return Resolved{Model: m, PublicID: publicID}, nil
	}

	return Resolved{}, apperr.New(apperr.NotFound, "model not found")
}

func selectProvider(alias config.Alias, models map[string]*config.ResolvedModel, counters *AliasCounters) (string, error) {
	var enabled []string
	for _, p := range alias.Providers {
		if m, ok := models[p]; ok && m.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return "", fmt.Errorf("alias %q has no enabled providers", alias.Name)
	}
	switch alias.Strategy {
	case config.PickRandom:
		idx, err := randomIndex(len(enabled))
		if err != nil {
			return "", err
		}
		return enabled[idx], nil
	default: // round_robin
		idx := counters.advance(alias.Name, len(enabled))
		return enabled[idx], nil
	}
}

func randomIndex(n int) (int, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random provider selection failed: %w", err)
	}
	return int(idx.Int64()), nil
}

// PublicIDForModel returns a model's own public id (owned_by/id), used for
// the listing endpoint and for computing the prefix of a default_model.
func PublicIDForModel(m *config.ResolvedModel) string {
	return m.OwnedBy + "/" + m.ID
}

// PublicIDForAlias returns an alias's public id under its effective prefix.
func PublicIDForAlias(alias config.Alias, models map[string]*config.ResolvedModel) string {
	return EffectiveOwnedBy(alias, models) + "/" + alias.Name
}
