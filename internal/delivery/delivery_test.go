package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aidekernel/aide/internal/types"
)

// fakeConn is an in-memory Conn that records outbound writes and lets tests
// feed inbound messages without a real socket.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	inbound chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	cp := append([]byte(nil), data...)
	c.written = append(c.written, cp)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, errClosed
	}
	return 1, data, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
	}
	return nil
}

func (c *fakeConn) frames(t *testing.T) []ServerFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ServerFrame, 0, len(c.written))
	for _, raw := range c.written {
		var f ServerFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

type fakeErr struct{ s string }

func (e fakeErr) Error() string { return e.s }

var errClosed = fakeErr{"fake conn closed"}

func buildSnapshot(t *testing.T) types.PageState {
	t.Helper()
	state := types.NewPageState("page1")
	state.Entities["roster"] = types.Entity{ID: "roster", ParentID: types.RootID, Display: types.DisplayTable, State: types.Live, CreatedSeq: 1}
	return state
}

func TestSubscribeRepliesSnapshotThenBroadcastsDeltasInOrder(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	sub := hub.Subscribe("page1", conn, buildSnapshot(t))

	data, _ := json.Marshal(types.EntityCreatePayload{ID: "child1", Parent: "roster", Display: types.DisplayText})
	hub.Broadcast("page1", []types.Event{{ID: "child1", Type: types.PrimEntityCreate, Payload: data}})

	waitForFrames(t, conn, 4)
	frames := conn.frames(t)
	if frames[0].Type != ServerFrameSnapshotStart {
		t.Fatalf("expected snapshot.start first, got %+v", frames[0])
	}
	if frames[1].Type != ServerFrameDelta || frames[1].Event.ID != "roster" {
		t.Fatalf("expected roster replay second, got %+v", frames[1])
	}
	if frames[2].Type != ServerFrameSnapshotEnd {
		t.Fatalf("expected snapshot.end third, got %+v", frames[2])
	}
	if frames[3].Type != ServerFrameDelta || frames[3].Event.ID != "child1" {
		t.Fatalf("expected broadcast delta last, got %+v", frames[3])
	}
	if hub.SubscriberCount("page1") != 1 {
		t.Fatalf("expected one subscriber, got %d", hub.SubscriberCount("page1"))
	}
	_ = sub
}

func TestBroadcastVoiceAndClarify(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	hub.Subscribe("page1", conn, types.NewPageState("page1"))
	waitForFrames(t, conn, 2) // snapshot.start, snapshot.end

	hub.BroadcastVoice("page1", "hello")
	hub.BroadcastClarify("page1", types.ClarifyPayload{Question: "which one?", Options: []string{"a", "b"}})
	waitForFrames(t, conn, 4)

	frames := conn.frames(t)
	if frames[2].Type != ServerFrameVoice || frames[2].Text != "hello" {
		t.Fatalf("unexpected voice frame: %+v", frames[2])
	}
	if frames[3].Type != ServerFrameClarify || frames[3].Question != "which one?" {
		t.Fatalf("unexpected clarify frame: %+v", frames[3])
	}
}

func TestStreamStartVoiceDeltasStreamEndOrdering(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	hub.Subscribe("page1", conn, types.NewPageState("page1"))
	waitForFrames(t, conn, 2) // snapshot.start, snapshot.end

	roster, _ := json.Marshal(types.EntityCreatePayload{ID: "roster", Parent: types.RootID, Display: types.DisplayTable})
	alice, _ := json.Marshal(types.EntityCreatePayload{ID: "player_alice", Parent: "roster", Display: types.DisplayText})

	hub.StreamStart("page1")
	hub.BroadcastVoice("page1", "adding a roster")
	hub.Broadcast("page1", []types.Event{{ID: "roster", Type: types.PrimEntityCreate, Payload: roster}})
	hub.Broadcast("page1", []types.Event{{ID: "player_alice", Type: types.PrimEntityCreate, Payload: alice}})
	hub.StreamEnd("page1")

	waitForFrames(t, conn, 7)
	frames := conn.frames(t)[2:]
	if frames[0].Type != ServerFrameStreamStart {
		t.Fatalf("expected stream.start first, got %+v", frames[0])
	}
	if frames[1].Type != ServerFrameVoice || frames[1].Text != "adding a roster" {
		t.Fatalf("expected voice second, got %+v", frames[1])
	}
	if frames[2].Type != ServerFrameDelta || frames[2].Event.ID != "roster" {
		t.Fatalf("expected roster delta third, got %+v", frames[2])
	}
	if frames[3].Type != ServerFrameDelta || frames[3].Event.ID != "player_alice" {
		t.Fatalf("expected player_alice delta fourth, got %+v", frames[3])
	}
	if frames[4].Type != ServerFrameStreamEnd {
		t.Fatalf("expected stream.end last, got %+v", frames[4])
	}
}

func TestUnregisteredPageBroadcastIsNoOp(t *testing.T) {
	hub := NewHub(nil)
	hub.Broadcast("no-such-page", []types.Event{{ID: "x"}})
	if hub.SubscriberCount("no-such-page") != 0 {
		t.Fatal("expected no subscribers")
	}
}

func waitForFrames(t *testing.T, conn *fakeConn, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn.mu.Lock()
		got := len(conn.written)
		conn.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames", n)
}

// fakeLoader and fakeSubmitter exercise Handler's read loop without a real
// HTTP upgrade.
type fakeLoader struct{ state types.PageState }

func (l fakeLoader) LoadSnapshot(ctx context.Context, pageID string) (types.PageState, error) {
	return l.state, nil
}

type fakeSubmitter struct {
	requests []SubmitRequest
}

func (s *fakeSubmitter) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	s.requests = append(s.requests, req)
	return SubmitResult{}, nil
}

func TestReadLoopForwardsMessageAndDirectEditFrames(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	sub := hub.Subscribe("page1", conn, types.NewPageState("page1"))
	submitter := &fakeSubmitter{}
	h := NewHandler(hub, fakeLoader{state: types.NewPageState("page1")}, submitter, nil)

	msg, _ := json.Marshal(ClientFrame{Type: ClientFrameMessage, Content: "add a roster", MessageID: "m1"})
	value, _ := json.Marshal(types.NewString("Alice"))
	edit, _ := json.Marshal(ClientFrame{Type: ClientFrameDirectEdit, EntityID: "player1", Field: "name", Value: value})

	conn.inbound <- msg
	conn.inbound <- edit
	close(conn.inbound)

	h.readLoop("page1", conn, sub)

	if len(submitter.requests) != 2 {
		t.Fatalf("expected two submitted requests, got %d", len(submitter.requests))
	}
	if submitter.requests[0].Prompt != "add a roster" {
		t.Fatalf("unexpected first request: %+v", submitter.requests[0])
	}
	if submitter.requests[1].DirectEdit == nil || submitter.requests[1].DirectEdit.EntityID != "player1" {
		t.Fatalf("unexpected second request: %+v", submitter.requests[1])
	}
}
