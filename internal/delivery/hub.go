package delivery

import (
	"log/slog"
	"sync"

	"github.com/aidekernel/aide/internal/types"
)

// outboxSize bounds how far a subscriber's writer can lag behind the
// broadcasts queued for it before the hub gives up on it. Order must be
// preserved for every frame a subscriber does receive (§4.7 "Ordering
// guarantee"), so a full outbox disconnects the subscriber rather than
// silently dropping a frame out of sequence; the client resyncs via a fresh
// snapshot replay on reconnect.
const outboxSize = 256

// Hub fans page deltas out to every subscriber currently watching that page,
// grounded on the teacher's `examples/monitor-webui` broadcaster
// (`wsClients`/`wsClientsMu`/`wsBroadcast`), generalized from one global
// client set to one set per page.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscriber]struct{}
	log  *slog.Logger
}

// NewHub builds an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: make(map[string]map[*Subscriber]struct{}), log: log}
}

// Subscribe registers conn as a watcher of pageID and synchronously enqueues
// a snapshot replay of initial (§6.3 "a successful connection begins with a
// snapshot replay of the current page state, then live updates"). The
// enqueue happens under the same lock Broadcast uses, so no live delta can
// be interleaved ahead of the replay it's registering for.
func (h *Hub) Subscribe(pageID string, conn Conn, initial types.PageState) *Subscriber {
	sub := newSubscriber(conn)

	h.mu.Lock()
	if h.subs[pageID] == nil {
		h.subs[pageID] = make(map[*Subscriber]struct{})
	}
	h.subs[pageID][sub] = struct{}{}
	sub.enqueueSnapshot(initial)
	h.mu.Unlock()

	go sub.writePump(func() { h.unregister(pageID, sub) })
	return sub
}

func (h *Hub) unregister(pageID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[pageID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, pageID)
		}
	}
}

// Broadcast implements orchestrator.Broadcaster: fans events out, in order,
// to every live subscriber of pageID. A subscriber whose outbox is full is
// dropped rather than stalled (§5 "Cancellation": a vanished subscriber is
// the delivery layer's concern to drop).
func (h *Hub) Broadcast(pageID string, events []types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[pageID] {
		for _, ev := range events {
			ev := ev
			if !sub.enqueue(ServerFrame{Type: ServerFrameDelta, Event: &ev}) {
				h.log.Warn("delivery: dropping slow subscriber", "page_id", pageID)
				sub.closeLocked()
				delete(h.subs[pageID], sub)
				break
			}
		}
	}
}

// BroadcastVoice implements orchestrator.Broadcaster.
func (h *Hub) BroadcastVoice(pageID string, text string) {
	h.broadcastFrame(pageID, ServerFrame{Type: ServerFrameVoice, Text: text})
}

// BroadcastClarify implements orchestrator.Broadcaster.
func (h *Hub) BroadcastClarify(pageID string, payload types.ClarifyPayload) {
	h.broadcastFrame(pageID, ServerFrame{Type: ServerFrameClarify, Question: payload.Question, Options: payload.Options})
}

// StreamStart/StreamEnd bracket one turn's deltas for every subscriber of
// pageID (§4.7 "stream.start / stream.end").
func (h *Hub) StreamStart(pageID string) { h.broadcastFrame(pageID, ServerFrame{Type: ServerFrameStreamStart}) }
func (h *Hub) StreamEnd(pageID string)   { h.broadcastFrame(pageID, ServerFrame{Type: ServerFrameStreamEnd}) }

func (h *Hub) broadcastFrame(pageID string, frame ServerFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[pageID] {
		if !sub.enqueue(frame) {
			sub.closeLocked()
			delete(h.subs[pageID], sub)
		}
	}
}

// SubscriberCount reports how many connections currently watch pageID,
// mostly useful for tests and diagnostics.
func (h *Hub) SubscriberCount(pageID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[pageID])
}
