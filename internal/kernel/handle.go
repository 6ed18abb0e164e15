package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/apperr"
)

// reloadDebounce is the minimum interval between two reloads that actually
// touch the filesystem.
const reloadDebounce = 1500 * time.Millisecond

// Handle owns an atomically-swappable pointer to the current Snapshot.
// Current is lock-free and wait-free past one atomic load; Reload holds a
// mutex only across the debounce check, then builds the new snapshot
// outside the lock and publishes it with a single atomic pointer swap.
type Handle struct {
	configDir string
	logger    *zap.Logger
	ptr       atomic.Pointer[Snapshot]

	reloadMu  sync.Mutex
	lastStart time.Time
}

// New loads the initial snapshot and returns a ready Handle. A failure here
// is fatal to startup (there is no prior snapshot to fall back to).
func New(configDir string, logger *zap.Logger) (*Handle, error) {
	snap, err := buildSnapshot(configDir, logger)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load config failed", err)
	}
	h := &Handle{configDir: configDir, logger: logger}
	h.ptr.Store(snap)
	return h, nil
}

// Current returns the currently published snapshot.
func (h *Handle) Current() *Snapshot {
	return h.ptr.Load()
}

// ReloadOutcome reports whether a Reload call actually rebuilt the snapshot.
type ReloadOutcome struct {
	Snapshot *Snapshot
	Reloaded bool
}

// Reload rebuilds the snapshot from disk and swaps it in, unless called
// again within reloadDebounce of the last reload that actually ran, in
// which case it returns the current snapshot with Reloaded=false. On build
// failure the prior snapshot is retained and the error is returned.
func (h *Handle) Reload() (ReloadOutcome, error) {
	h.reloadMu.Lock()
	if !h.lastStart.IsZero() && time.Since(h.lastStart) < reloadDebounce {
		h.reloadMu.Unlock()
		h.logger.Info("reload debounced", zap.Duration("elapsed", time.Since(h.lastStart)))
		return ReloadOutcome{Snapshot: h.Current(), Reloaded: false}, nil
	}
	h.lastStart = time.Now()
	h.reloadMu.Unlock()

	snap, err := buildSnapshot(h.configDir, h.logger)
	if err != nil {
		return ReloadOutcome{}, apperr.Wrap(apperr.Internal, "reload failed", err)
	}
	prev := h.ptr.Swap(snap)
	if prev != nil {
		// The old snapshot's script workers stay up until requests that
		// captured it have had time to finish their calls.
		go func() {
			time.Sleep(prev.drainDelay())
			prev.closeWorkers()
		}()
	}
	return ReloadOutcome{Snapshot: snap, Reloaded: true}, nil
}
