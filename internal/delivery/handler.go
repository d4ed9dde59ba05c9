package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aidekernel/aide/internal/types"
)

// Submitter is the orchestrator surface a Handler drives; cmd/aide's
// orchestratorAdapter satisfies it by wrapping *orchestrator.Orchestrator.
// Kept as a local interface so delivery never imports
// orchestrator's concrete type, the same "accept interfaces" shape as
// internal/orchestrator's own Broadcaster/FlightRecorder.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// SubmitRequest and SubmitResult mirror orchestrator.TurnRequest/TurnResult's
// fields the delivery layer needs, so this package does not have to import
// orchestrator to name its types. The caller supplies an adapter type
// (see cmd/aide's wiring) that translates between the two.
type SubmitRequest struct {
	PageID       string
	TurnID       string
	Prompt       string
	HasPriorTurn bool
	ActorTier    string
	DirectEdit   *DirectEditRequest
}

// DirectEditRequest mirrors orchestrator.DirectEdit.
type DirectEditRequest struct {
	EntityID string
	Field    string
	Value    types.PropValue
}

// SubmitResult is the minimal turn outcome the handler reports back to the
// client as direct_edit.ack/.error; live deltas arrive separately through
// the Hub regardless of this return value.
type SubmitResult struct {
	Err error
}

// PageLoader resolves a page's current snapshot for the initial replay
// (§4.7, §6.3).
type PageLoader interface {
	LoadSnapshot(ctx context.Context, pageID string) (types.PageState, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections to the duplex channel and wires each one
// to the Hub and the orchestrator, grounded on the teacher's
// `examples/monitor-webui.handleWebSocket` upgrade-register-read loop.
type Handler struct {
	hub    *Hub
	pages  PageLoader
	submit Submitter
	log    *slog.Logger
}

// NewHandler builds a Handler bound to the given hub, page snapshot loader,
// and turn submitter.
func NewHandler(hub *Hub, pages PageLoader, submit Submitter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{hub: hub, pages: pages, submit: submit, log: log}
}

// ServeHTTP upgrades the connection and serves a single page's duplex
// channel named by the "page" query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		http.Error(w, "page query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("delivery: upgrade failed", "error", err)
		return
	}

	snapshot, err := h.pages.LoadSnapshot(r.Context(), pageID)
	if err != nil {
		h.log.Warn("delivery: load snapshot failed", "page_id", pageID, "error", err)
		_ = conn.Close()
		return
	}

	sub := h.hub.Subscribe(pageID, conn, snapshot)
	h.readLoop(pageID, conn, sub)
}

// readLoop consumes client frames until the connection closes. It never
// blocks the write side: Submit runs synchronously here because a turn's
// own deltas are delivered asynchronously through the Hub, not as a direct
// reply, so a slow turn only delays this one connection's next read, not any
// broadcast.
func (h *Handler) readLoop(pageID string, conn Conn, sub *Subscriber) {
	hasPriorTurn := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case ClientFrameMessage:
			req := SubmitRequest{PageID: pageID, TurnID: frame.MessageID, Prompt: frame.Content, HasPriorTurn: hasPriorTurn}
			hasPriorTurn = true
			if _, err := h.submit.Submit(context.Background(), req); err != nil {
				sub.enqueue(ServerFrame{Type: ServerFrameDirectEditErr, MessageID: frame.MessageID, Error: err.Error()})
			}

		case ClientFrameDirectEdit:
			var value types.PropValue
			if err := json.Unmarshal(frame.Value, &value); err != nil {
				sub.enqueue(ServerFrame{Type: ServerFrameDirectEditErr, Error: "invalid value: " + err.Error()})
				continue
			}
			req := SubmitRequest{
				PageID: pageID,
				DirectEdit: &DirectEditRequest{EntityID: frame.EntityID, Field: frame.Field, Value: value},
			}
			res, err := h.submit.Submit(context.Background(), req)
			if err != nil || res.Err != nil {
				errText := err
				if errText == nil {
					errText = res.Err
				}
				sub.enqueue(ServerFrame{Type: ServerFrameDirectEditErr, Error: errText.Error()})
				continue
			}
			sub.enqueue(ServerFrame{Type: ServerFrameDirectEditAck})
		}
	}
}
