package types

import (
	"encoding/json"
	"time"
)

// Primitive is the closed set of mutation and signal operations a turn can
// emit (§4.1's primitive registry table). The reducer switches on this set
// exhaustively; any value outside it is rejected by the registry before the
// reducer ever sees it.
type Primitive string

const (
	// Mutating primitives.
	PrimEntityCreate  Primitive = "entity.create"
	PrimEntityUpdate  Primitive = "entity.update"
	PrimEntityRemove  Primitive = "entity.remove"
	PrimEntityMove    Primitive = "entity.move"
	PrimEntityReorder Primitive = "entity.reorder"
	PrimRelSet        Primitive = "rel.set"
	PrimRelRemove     Primitive = "rel.remove"
	PrimStyleSet      Primitive = "style.set"
	PrimStyleEntity   Primitive = "style.entity"
	PrimMetaSet       Primitive = "meta.set"
	PrimMetaAnnotate  Primitive = "meta.annotate"
	PrimMetaConstrain Primitive = "meta.constrain"

	// Non-mutating signal primitives.
	PrimVoice    Primitive = "voice"
	PrimEscalate Primitive = "escalate"
	PrimClarify  Primitive = "clarify"

	// Batch brackets.
	PrimBatchStart Primitive = "batch.start"
	PrimBatchEnd   Primitive = "batch.end"
)

// MutatingPrimitives lists the primitives that alter PageState when reduced.
// Signal primitives and batch brackets pass through the reducer without
// touching entities, relationships, meta, or styles.
var MutatingPrimitives = map[Primitive]bool{
	PrimEntityCreate:  true,
	PrimEntityUpdate:  true,
	PrimEntityRemove:  true,
	PrimEntityMove:    true,
	PrimEntityReorder: true,
	PrimRelSet:        true,
	PrimRelRemove:     true,
	PrimStyleSet:      true,
	PrimStyleEntity:   true,
	PrimMetaSet:       true,
	PrimMetaAnnotate:  true,
	PrimMetaConstrain: true,
}

// Source identifies the channel an event's originating message arrived on
// (§3.4: "web|signal|api|..."), carried through to the flight recorder and
// the delivery channel's attribution fields.
type Source string

const (
	SourceWeb    Source = "web"
	SourceSignal Source = "signal"
	SourceAPI    Source = "api"
	SourceSystem Source = "system"
)

// Event is a single entry in a page's append-only log. Payload carries the
// primitive-specific fields as raw JSON; the registry decodes it into one of
// the typed *Payload structs in primitive.go before validation.
type Event struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	Source    Source          `json:"source"`
	Type      Primitive       `json:"type"`
	Payload   json.RawMessage `json:"payload"`

	// TurnID groups events emitted within a single orchestrator turn.
	// BatchID is carried through serialization and copied onto the
	// reducer's synthetic rel.remove deltas; nothing in the kernel assigns
	// it, and primitives between batch.start and batch.end are applied one
	// at a time like any others.
	TurnID  string `json:"turn_id,omitempty"`
	BatchID string `json:"batch_id,omitempty"`
}
