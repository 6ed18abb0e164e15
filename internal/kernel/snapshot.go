// Package kernel owns the atomically-swappable snapshot that bundles
// parsed config, resolved models, alias routing, compiled match caches,
// running script workers, and round-robin counters — and the debounced
// reload handle in front of it.
package kernel

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/match"
	"github.com/llm-lab/mockllm/internal/resolver"
	"github.com/llm-lab/mockllm/internal/script"
	"github.com/llm-lab/mockllm/internal/staticengine"
)

// Snapshot is an immutable bundle of everything one reload pass produces.
// Once published by a Handle, a Snapshot is never mutated: round-robin
// counters inside it are mutated under short-lived locks, but the maps
// themselves are never replaced or resized after construction.
type Snapshot struct {
	Global  config.GlobalConfig
	Catalog config.ModelCatalog
	Models  map[string]*config.ResolvedModel
	Aliases map[string]config.Alias

	matchCaches    map[string]*match.Cache
	staticCounters map[string]*staticengine.Counters
	scriptWorkers  map[string]*script.Worker
	aliasCounters  *resolver.AliasCounters

	LoadedAt  time.Time
	ConfigDir string
}

// MatchCache returns the compiled rule cache for a static model id.
func (s *Snapshot) MatchCache(modelID string) *match.Cache {
	return s.matchCaches[modelID]
}

// StaticCounters returns the round-robin counters for a static model id,
// or nil for an id that is not a static model (build populates these for
// every static model).
func (s *Snapshot) StaticCounters(modelID string) *staticengine.Counters {
	return s.staticCounters[modelID]
}

// ScriptWorker returns the running worker for a script model id.
func (s *Snapshot) ScriptWorker(modelID string) *script.Worker {
	return s.scriptWorkers[modelID]
}

// AliasCounters returns the snapshot-wide alias round-robin counters.
func (s *Snapshot) AliasCounters() *resolver.AliasCounters {
	return s.aliasCounters
}

// buildSnapshot runs one full load pass: parse config, resolve models,
// build match caches for static models, start workers for script models,
// and build the alias map. It fails atomically — workers started for a
// build that then fails are closed before the error is returned.
func buildSnapshot(dir string, logger *zap.Logger) (*Snapshot, error) {
	loaded, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s := &Snapshot{
		Global:         loaded.Global,
		Catalog:        loaded.Catalog,
		Models:         loaded.Models,
		Aliases:        make(map[string]config.Alias, len(loaded.Catalog.Aliases)),
		matchCaches:    make(map[string]*match.Cache),
		staticCounters: make(map[string]*staticengine.Counters),
		scriptWorkers:  make(map[string]*script.Worker),
		aliasCounters:  resolver.NewAliasCounters(),
		LoadedAt:       time.Now(),
		ConfigDir:      dir,
	}
	for _, a := range loaded.Catalog.Aliases {
		s.Aliases[a.Name] = a
	}

	for id, m := range loaded.Models {
		switch m.Kind {
		case config.KindStatic:
			cache, err := match.Build(&m.Static)
			if err != nil {
				s.closeWorkers()
				return nil, fmt.Errorf("model %s: build match cache: %w", id, err)
			}
			s.matchCaches[id] = cache
			s.staticCounters[id] = staticengine.NewCounters()
		case config.KindScript:
			scriptPath, err := config.ResolveScriptPath(loaded.ScriptsDir, m.Script.File)
			if err != nil {
				s.closeWorkers()
				return nil, fmt.Errorf("model %s: %w", id, err)
			}
			initPath := ""
			if m.Script.InitFile != "" {
				initPath, err = config.ResolveScriptPath(loaded.ScriptsDir, m.Script.InitFile)
				if err != nil {
					s.closeWorkers()
					return nil, fmt.Errorf("model %s: %w", id, err)
				}
			}
			worker, err := script.Start(scriptPath, initPath)
			if err != nil {
				s.closeWorkers()
				return nil, fmt.Errorf("model %s: start script worker: %w", id, err)
			}
			s.scriptWorkers[id] = worker
			logger.Info("script engine ready", zap.String("model", id))
		case config.KindInteractive:
			// no per-model snapshot state: the hub is process-wide.
		}
	}

	logger.Info("kernel snapshot loaded",
		zap.Int("models", len(s.Models)),
		zap.Int("aliases", len(s.Aliases)),
		zap.String("config_dir", dir),
	)
	return s, nil
}

func (s *Snapshot) closeWorkers() {
	for _, w := range s.scriptWorkers {
		w.Close()
	}
}

// drainDelay is how long a superseded snapshot's workers are kept alive
// after the swap, so requests that captured the old snapshot can finish
// their script calls: the longest configured script timeout plus slack.
func (s *Snapshot) drainDelay() time.Duration {
	maxMs := 0
	for _, m := range s.Models {
		if m.Kind != config.KindScript {
			continue
		}
		if t := m.EffectiveScriptTimeout(); t > maxMs {
			maxMs = t
		}
	}
	return time.Duration(maxMs)*time.Millisecond + time.Second
}
