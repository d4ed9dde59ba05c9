package stream

import (
	"encoding/json"
	"fmt"

	"github.com/aidekernel/aide/internal/types"
)

// Recognised tool names. mutate_entity and set_relationship are the two
// tool shapes the tier transport contract requires (§4.5, §6.4); the
// remaining names are how the non-mutating signals of §4.1's table
// ("recognised inline either as tool calls or as recognised JSONL lines in
// legacy paths") surface when a tier chooses to emit them as tool calls
// rather than as plain text.
const (
	ToolMutateEntity    = "mutate_entity"
	ToolSetRelationship = "set_relationship"
	ToolEscalate        = "escalate"
	ToolClarify         = "clarify"
	ToolBatchStart      = "batch_start"
	ToolBatchEnd        = "batch_end"
)

// mutateEntityArgs mirrors the mutate_entity tool schema: action selects
// which of the five entity primitives the call decomposes into.
type mutateEntityArgs struct {
	Action  string               `json:"action"`
	ID      string               `json:"id,omitempty"`
	Ref     string               `json:"ref,omitempty"`
	Parent  string               `json:"parent,omitempty"`
	Display types.Display        `json:"display,omitempty"`
	Props   map[string]types.PropValue `json:"props,omitempty"`
	Position *int                `json:"position,omitempty"`
	Children []string            `json:"children,omitempty"`
}

// setRelationshipArgs mirrors the set_relationship tool schema.
type setRelationshipArgs struct {
	Action      string            `json:"action"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Type        string            `json:"type"`
	Cardinality types.Cardinality `json:"cardinality,omitempty"`
}

// decomposeTool parses a completed tool call's buffered JSON and expands it
// into exactly one primitive event (§4.5). The returned event has no
// Seq/Timestamp set; Assembly.Apply stamps those at apply time.
func decomposeTool(toolName string, rawJSON string) (types.Event, error) {
	switch toolName {
	case ToolMutateEntity:
		return decomposeMutateEntity(rawJSON)
	case ToolSetRelationship:
		return decomposeSetRelationship(rawJSON)
	case ToolEscalate:
		return decomposeRaw(types.PrimEscalate, rawJSON, &types.EscalatePayload{})
	case ToolClarify:
		return decomposeRaw(types.PrimClarify, rawJSON, &types.ClarifyPayload{})
	case ToolBatchStart:
		return types.Event{Type: types.PrimBatchStart}, nil
	case ToolBatchEnd:
		return types.Event{Type: types.PrimBatchEnd}, nil
	default:
		return types.Event{}, fmt.Errorf("stream: unrecognised tool %q", toolName)
	}
}

// decomposeRaw validates rawJSON against the target signal payload shape
// (structural validation only, since signal primitives never reach the
// reducer) and re-marshals it onto the event.
func decomposeRaw(prim types.Primitive, rawJSON string, target any) (types.Event, error) {
	if err := json.Unmarshal([]byte(rawJSON), target); err != nil {
		return types.Event{}, fmt.Errorf("stream: malformed %s input: %w", prim, err)
	}
	return buildEvent(prim, target)
}

func decomposeMutateEntity(rawJSON string) (types.Event, error) {
	var args mutateEntityArgs
	if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
		return types.Event{}, fmt.Errorf("stream: malformed mutate_entity input: %w", err)
	}

	switch args.Action {
	case "create":
		return buildEvent(types.PrimEntityCreate, types.EntityCreatePayload{
			ID: args.ID, Parent: args.Parent, Display: args.Display, Props: args.Props,
		})
	case "update":
		return buildEvent(types.PrimEntityUpdate, types.EntityUpdatePayload{
			Ref: args.Ref, Props: args.Props,
		})
	case "remove":
		return buildEvent(types.PrimEntityRemove, types.EntityRemovePayload{Ref: args.Ref})
	case "move":
		return buildEvent(types.PrimEntityMove, types.EntityMovePayload{
			Ref: args.Ref, Parent: args.Parent, Position: args.Position,
		})
	case "reorder":
		return buildEvent(types.PrimEntityReorder, types.EntityReorderPayload{
			Ref: args.Ref, Children: args.Children,
		})
	default:
		return types.Event{}, fmt.Errorf("stream: unrecognised mutate_entity action %q", args.Action)
	}
}

func decomposeSetRelationship(rawJSON string) (types.Event, error) {
	var args setRelationshipArgs
	if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
		return types.Event{}, fmt.Errorf("stream: malformed set_relationship input: %w", err)
	}

	switch args.Action {
	case "set":
		return buildEvent(types.PrimRelSet, types.RelSetPayload{
			From: args.From, To: args.To, Type: args.Type, Cardinality: args.Cardinality,
		})
	case "remove":
		return buildEvent(types.PrimRelRemove, types.RelRemovePayload{
			From: args.From, To: args.To, Type: args.Type,
		})
	case "constrain":
		// The tool schema has no dedicated relationship-constraint primitive
		// (§4.1's closed set only has meta.constrain, scoped to an
		// entity/field); a relationship constraint is expressed as a
		// meta.constrain rule scoped by the edge's endpoint and type.
		return buildEvent(types.PrimMetaConstrain, types.MetaConstrainPayload{
			ID:       fmt.Sprintf("rel:%s:%s:%s", args.From, args.Type, args.To),
			Rule:     "relationship_cardinality",
			Value:    types.NewString(string(args.Cardinality)),
			EntityID: args.From,
			Field:    args.Type,
		})
	default:
		return types.Event{}, fmt.Errorf("stream: unrecognised set_relationship action %q", args.Action)
	}
}

func buildEvent(prim types.Primitive, payload any) (types.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.Event{}, fmt.Errorf("stream: marshal %s payload: %w", prim, err)
	}
	return types.Event{Type: prim, Payload: data}, nil
}
