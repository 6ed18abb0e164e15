// Package interactive implements the human-in-the-loop rendezvous queue:
// requests are enqueued, an operator fulfills them through a side-channel
// admin action, and a best-effort event stream reports hub activity to
// dashboards.
package interactive

import (
	"sync"

	"github.com/llm-lab/mockllm/internal/chatapi"
)

// Request is the metadata an operator sees while a reply is pending.
type Request struct {
	ID        string            `json:"id"`
	Model     string            `json:"model"`
	Messages  []chatapi.Message `json:"messages"`
	Stream    bool              `json:"stream"`
	Created   int64             `json:"created"`
	TimeoutMs int               `json:"timeout_ms"`
}

// Reply is the payload an operator submits to fulfill a pending request.
type Reply struct {
	Content      string
	Reasoning    string
	HasReasoning bool
	FinishReason string
}

// Event is a hub activity notification broadcast to admin subscribers.
type Event struct {
	Type    string   `json:"type"` // "queued" | "replied" | "timeout"
	ID      string   `json:"id"`
	Request *Request `json:"request,omitempty"`
}

type pendingEntry struct {
	request Request
	replyCh chan Reply
}

const eventBufferCapacity = 128

// Hub is the process-wide interactive queue. It outlives any single kernel
// snapshot: reloads rebuild models, not in-flight human conversations.
type Hub struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		pending: make(map[string]*pendingEntry),
		subs:    make(map[chan Event]struct{}),
	}
}

// Enqueue inserts req under req.ID, emits a "queued" event, and returns a
// channel the caller should read exactly once (a buffered channel of
// capacity 1 acts as a single-use reply sink, analogous to a oneshot).
func (h *Hub) Enqueue(req Request) <-chan Reply {
	ch := make(chan Reply, 1)
	h.mu.Lock()
	h.pending[req.ID] = &pendingEntry{request: req, replyCh: ch}
	h.mu.Unlock()

	reqCopy := req
	h.broadcast(Event{Type: "queued", ID: req.ID, Request: &reqCopy})
	return ch
}

// List snapshots the currently pending requests.
func (h *Hub) List() []Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Request, 0, len(h.pending))
	for _, e := range h.pending {
		out = append(out, e.request)
	}
	return out
}

// Reply removes the pending entry for id and delivers payload on its reply
// channel. It reports whether an entry was found.
func (h *Hub) Reply(id string, payload Reply) bool {
	h.mu.Lock()
	e, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	e.replyCh <- payload
	h.broadcast(Event{Type: "replied", ID: id})
	return true
}

// Timeout removes the pending entry for id without delivering a reply,
// called by the handler after its own await has expired. It reports
// whether an entry was found.
func (h *Hub) Timeout(id string) bool {
	h.mu.Lock()
	_, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	h.broadcast(Event{Type: "timeout", ID: id})
	return true
}

// Subscribe returns a channel of hub events. The caller must keep reading
// it promptly: slow subscribers have events dropped rather than blocking
// publishers, and must call Unsubscribe when done.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, eventBufferCapacity)
	h.subMu.Lock()
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.subMu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.subMu.Unlock()
}

// broadcast fans an event out to every subscriber without holding the
// pending-map lock and without blocking on a full subscriber channel.
func (h *Hub) broadcast(ev Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
