package render

import (
	"encoding/json"
	"testing"

	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/types"
)

func buildTestState(t *testing.T) (types.PageState, []types.Event) {
	t.Helper()
	mk := func(seq uint64, prim types.Primitive, payload any) types.Event {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return types.Event{ID: "e", Seq: seq, Type: prim, Payload: data, Source: types.SourceWeb}
	}
	events := []types.Event{
		mk(1, types.PrimEntityCreate, types.EntityCreatePayload{
			ID: "roster", Parent: "root", Display: types.DisplayTable,
			Props: map[string]types.PropValue{"title": types.NewString("Roster")},
		}),
		mk(2, types.PrimEntityCreate, types.EntityCreatePayload{
			ID: "player_alice", Parent: "roster", Display: types.DisplayRow,
			Props: map[string]types.PropValue{"name": types.NewString("Alice"), "wins": types.NewNumber(0)},
		}),
	}
	result := reducer.Apply(types.NewPageState("page1"), events)
	if len(result.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", result.Rejected)
	}
	return result.State, events
}

func TestRenderParseRoundTrip(t *testing.T) {
	state, events := buildTestState(t)
	blueprint := types.Blueprint{Identity: "roster-keeper", Voice: "terse", Prompt: "Track a team roster."}

	doc, err := Render(state, blueprint, events)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	gotBlueprint, gotSnapshot, gotEvents, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if gotBlueprint == nil || *gotBlueprint != blueprint {
		t.Fatalf("blueprint round-trip mismatch: got %+v want %+v", gotBlueprint, blueprint)
	}
	if gotSnapshot == nil {
		t.Fatal("expected snapshot block")
	}
	if len(gotSnapshot.Entities) != len(state.Entities) {
		t.Fatalf("snapshot entity count mismatch: got %d want %d", len(gotSnapshot.Entities), len(state.Entities))
	}
	if len(gotEvents) != len(events) {
		t.Fatalf("event count mismatch: got %d want %d", len(gotEvents), len(events))
	}
}

func TestRenderDeterministic(t *testing.T) {
	state, events := buildTestState(t)
	blueprint := types.Blueprint{Identity: "x"}

	doc1, err := Render(state, blueprint, events)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	doc2, err := Render(state, blueprint, events)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if doc1 != doc2 {
		t.Fatal("Render is not deterministic for identical inputs")
	}
}

func TestParseHandlesEmptyBlueprintAndEvents(t *testing.T) {
	state, _ := buildTestState(t)
	doc, err := Render(state, types.Blueprint{}, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	bp, snap, events, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bp == nil {
		t.Fatal("expected a (zero-value) blueprint block to still be present")
	}
	if snap == nil {
		t.Fatal("expected snapshot block")
	}
	if len(events) != 0 {
		t.Fatalf("expected empty events, got %d", len(events))
	}
}

func TestRemovedEntitiesSkippedInRender(t *testing.T) {
	state, events := buildTestState(t)
	removeEvent := types.Event{
		ID: "e3", Seq: 3, Type: types.PrimEntityRemove, Source: types.SourceWeb,
		Payload: mustJSON(t, types.EntityRemovePayload{Ref: "player_alice"}),
	}
	result := doReduce(t, state, removeEvent)
	events = append(events, removeEvent)

	doc, err := Render(result, types.Blueprint{}, events)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if contains(doc, `data-id="player_alice"`) {
		t.Fatal("removed entity should not appear in rendered body")
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func doReduce(t *testing.T, state types.PageState, ev types.Event) types.PageState {
	t.Helper()
	next, outcome := reducer.Reduce(state, ev)
	if !outcome.Applied {
		t.Fatalf("reduce failed: %v", outcome.Error)
	}
	return next
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
