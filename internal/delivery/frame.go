// Package delivery implements the per-client duplex channel of §4.7: a
// gorilla/websocket connection carrying JSON frames, one per message, in both
// directions. Client frames submit turns and direct edits; server frames
// carry snapshot replay, live deltas, voice/clarify signals, and stream
// brackets.
package delivery

import (
	"encoding/json"

	"github.com/aidekernel/aide/internal/types"
)

// ClientFrame is one inbound frame (§4.7 "Client → server").
type ClientFrame struct {
	Type string `json:"type"`

	// type == "message"
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`

	// type == "direct_edit": a synthetic single-primitive turn with source
	// web, following the same orchestrator path as a model-emitted mutation.
	EntityID string          `json:"entity_id,omitempty"`
	Field    string          `json:"field,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

const (
	ClientFrameMessage    = "message"
	ClientFrameDirectEdit = "direct_edit"
)

// ServerFrame is one outbound frame (§4.7 "Server → client"). Only the
// fields relevant to Type are populated; the rest are omitted.
type ServerFrame struct {
	Type string `json:"type"`

	Event *types.Event `json:"event,omitempty"` // type == "delta"
	Text  string       `json:"text,omitempty"`   // type == "voice"

	Question string   `json:"question,omitempty"` // type == "clarify"
	Options  []string `json:"options,omitempty"`   // type == "clarify"

	MessageID string `json:"message_id,omitempty"` // type == "direct_edit.ack" / ".error"
	Error     string `json:"error,omitempty"`       // type == "direct_edit.error"
}

const (
	ServerFrameSnapshotStart  = "snapshot.start"
	ServerFrameSnapshotEnd    = "snapshot.end"
	ServerFrameDelta          = "delta"
	ServerFrameVoice          = "voice"
	ServerFrameClarify        = "clarify"
	ServerFrameStreamStart    = "stream.start"
	ServerFrameStreamEnd      = "stream.end"
	ServerFrameDirectEditAck  = "direct_edit.ack"
	ServerFrameDirectEditErr  = "direct_edit.error"
)
