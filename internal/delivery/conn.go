package delivery

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aidekernel/aide/internal/types"
)

// Conn is the subset of *websocket.Conn a Subscriber needs; gorilla's type
// satisfies it directly, and tests substitute an in-memory fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Subscriber owns one client's outbox and the single goroutine that drains
// it onto the wire, mirroring the teacher's one-writer-per-connection
// discipline (gorilla/websocket forbids concurrent writes to the same
// connection).
type Subscriber struct {
	conn Conn

	mu     sync.Mutex
	outbox chan ServerFrame
	closed bool
}

func newSubscriber(conn Conn) *Subscriber {
	return &Subscriber{conn: conn, outbox: make(chan ServerFrame, outboxSize)}
}

// enqueue is non-blocking; it reports whether the frame was accepted.
// Callers hold the Hub's lock, so this never contends with closeLocked.
func (s *Subscriber) enqueue(frame ServerFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbox <- frame:
		return true
	default:
		return false
	}
}

// enqueueSnapshot queues the full catch-up replay of state for a newly
// subscribed connection (§4.7 "snapshot.start / snapshot.end bracketing an
// initial catch-up of all current entities"). Entities are replayed in
// LiveChildren order from root down so a client can build its tree
// incrementally without forward references.
func (s *Subscriber) enqueueSnapshot(state types.PageState) {
	s.enqueue(ServerFrame{Type: ServerFrameSnapshotStart})
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, childID := range state.LiveChildren(parentID) {
			child := state.Entities[childID]
			ev := syntheticCreateEvent(child)
			s.enqueue(ServerFrame{Type: ServerFrameDelta, Event: &ev})
			walk(childID)
		}
	}
	walk(types.RootID)
	s.enqueue(ServerFrame{Type: ServerFrameSnapshotEnd})
}

// syntheticCreateEvent re-expresses a live entity as the entity.create
// event that would have produced it, for replay purposes only; it is never
// fed to the reducer or persisted.
func syntheticCreateEvent(e types.Entity) types.Event {
	data, _ := json.Marshal(types.EntityCreatePayload{
		ID: e.ID, Parent: e.ParentID, Display: e.Display, Props: e.Props,
	})
	return types.Event{ID: e.ID, Seq: e.CreatedSeq, Type: types.PrimEntityCreate, Payload: data}
}

// closeLocked marks the subscriber dead so any in-flight enqueue under the
// hub's lock observes it; the caller (Hub) holds that lock already.
func (s *Subscriber) closeLocked() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
	s.mu.Unlock()
}

// writePump drains the outbox onto the wire until it closes or a write
// fails, then calls onDone to deregister itself from the hub.
func (s *Subscriber) writePump(onDone func()) {
	defer func() {
		_ = s.conn.Close()
		onDone()
	}()
	for frame := range s.outbox {
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
