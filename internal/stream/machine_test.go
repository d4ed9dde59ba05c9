package stream

import (
	"encoding/json"
	"testing"

	"github.com/aidekernel/aide/internal/types"
)

func TestMachineTextBlockEmitsVoice(t *testing.T) {
	m := NewMachine()
	m.Feed(BlockEvent{Kind: BlockStart, Index: 0, BlockType: BlockText})
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, TextDelta: "Building "})
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, TextDelta: "roster."})
	items := m.Feed(BlockEvent{Kind: BlockStop, Index: 0})

	if len(items) != 1 || items[0].Kind != ItemVoice {
		t.Fatalf("expected one voice item, got %+v", items)
	}
	if items[0].Text != "Building roster." {
		t.Fatalf("unexpected voice text: %q", items[0].Text)
	}
}

func TestMachineToolBlockEmitsPrimitive(t *testing.T) {
	m := NewMachine()
	m.Feed(BlockEvent{Kind: BlockStart, Index: 0, BlockType: BlockToolUse, ToolName: ToolMutateEntity})
	args := `{"action":"create","id":"roster","parent":"root","display":"table","props":{"title":{"kind":"string","str":"Roster"}}}`
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, PartialJSON: args[:20]})
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, PartialJSON: args[20:]})
	items := m.Feed(BlockEvent{Kind: BlockStop, Index: 0})

	if len(items) != 1 || items[0].Kind != ItemPrimitive {
		t.Fatalf("expected one primitive item, got %+v", items)
	}
	if items[0].Event.Type != types.PrimEntityCreate {
		t.Fatalf("expected entity.create, got %s", items[0].Event.Type)
	}
	var payload types.EntityCreatePayload
	if err := json.Unmarshal(items[0].Event.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID != "roster" {
		t.Fatalf("unexpected id: %q", payload.ID)
	}
}

func TestMachineMalformedToolJSONYieldsParseErrorNotFatal(t *testing.T) {
	m := NewMachine()
	m.Feed(BlockEvent{Kind: BlockStart, Index: 0, BlockType: BlockToolUse, ToolName: ToolMutateEntity})
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, PartialJSON: `{"action": "create", `})
	items := m.Feed(BlockEvent{Kind: BlockStop, Index: 0})
	if len(items) != 1 || items[0].Kind != ItemParseErr {
		t.Fatalf("expected one parse-error item, got %+v", items)
	}

	// The machine must still accept further blocks after a parse error.
	m.Feed(BlockEvent{Kind: BlockStart, Index: 1, BlockType: BlockText})
	more := m.Feed(BlockEvent{Kind: BlockStop, Index: 1})
	if len(more) != 0 {
		t.Fatalf("expected no items for an empty text block, got %+v", more)
	}
}

func TestMachineEmptyTextBlockEmitsNothing(t *testing.T) {
	m := NewMachine()
	m.Feed(BlockEvent{Kind: BlockStart, Index: 0, BlockType: BlockText})
	items := m.Feed(BlockEvent{Kind: BlockStop, Index: 0})
	if len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}

func TestMachineSetRelationshipConstrainMapsToMetaConstrain(t *testing.T) {
	m := NewMachine()
	m.Feed(BlockEvent{Kind: BlockStart, Index: 0, BlockType: BlockToolUse, ToolName: ToolSetRelationship})
	args := `{"action":"constrain","from":"player_tom","to":"game1","type":"hosting","cardinality":"one_to_one"}`
	m.Feed(BlockEvent{Kind: BlockDelta, Index: 0, PartialJSON: args})
	items := m.Feed(BlockEvent{Kind: BlockStop, Index: 0})

	if len(items) != 1 || items[0].Kind != ItemPrimitive {
		t.Fatalf("expected one primitive item, got %+v", items)
	}
	if items[0].Event.Type != types.PrimMetaConstrain {
		t.Fatalf("expected meta.constrain, got %s", items[0].Event.Type)
	}
}

func TestDecodeJSONLLineVoice(t *testing.T) {
	item, err := DecodeJSONLLine(`{"type":"voice","text":"hello"}`)
	if err != nil {
		t.Fatalf("DecodeJSONLLine: %v", err)
	}
	if item.Kind != ItemVoice || item.Text != "hello" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestDecodeJSONLLineToolCall(t *testing.T) {
	item, err := DecodeJSONLLine(`{"type":"tool_call","tool":"mutate_entity","args":{"action":"remove","ref":"x"}}`)
	if err != nil {
		t.Fatalf("DecodeJSONLLine: %v", err)
	}
	if item.Kind != ItemPrimitive || item.Event.Type != types.PrimEntityRemove {
		t.Fatalf("unexpected item: %+v", item)
	}
}
