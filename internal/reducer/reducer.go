// Package reducer implements the pure (state, event) → state' transition
// function at the heart of the editing kernel (§4.2). Reduce and Apply are
// total functions: same inputs always produce the same outputs, they never
// perform I/O, and they never read the clock — all timestamps are carried
// on the incoming Event.
package reducer

import (
	"github.com/aidekernel/aide/internal/registry"
	"github.com/aidekernel/aide/internal/types"
)

// Outcome is the result of reducing a single event against a page state.
type Outcome struct {
	Applied bool
	Error   error
	Warnings []string

	// Deltas is the ordered set of events to broadcast to subscribers for
	// this single input event. For most primitives it is exactly [event].
	// rel.set may prepend synthetic rel.remove events for edges evicted by
	// a cardinality swap (§4.2), so subscribers observe the same cascade
	// the state underwent.
	Deltas []types.Event
}

func rejected(err error) Outcome {
	return Outcome{Applied: false, Error: err}
}

// Reduce applies a single event to state, returning the new state (a
// distinct value; state itself is never mutated) and the outcome. On
// rejection the returned state equals the input state.
func Reduce(state types.PageState, event types.Event) (types.PageState, Outcome) {
	if !types.MutatingPrimitives[event.Type] {
		// Signal primitives (voice, escalate, clarify) and batch brackets
		// are no-ops for the reducer; they still flow through as deltas.
		return state, Outcome{Applied: true, Deltas: []types.Event{event}}
	}

	payload, err := registry.Decode(event.Type, event.Payload)
	if err != nil {
		return state, rejected(err)
	}

	next := state.Clone()
	var warnings []string
	var extraDeltas []types.Event

	switch event.Type {
	case types.PrimEntityCreate:
		warnings, err = reduceEntityCreate(&next, event, payload.(*types.EntityCreatePayload))
	case types.PrimEntityUpdate:
		warnings, err = reduceEntityUpdate(&next, event, payload.(*types.EntityUpdatePayload))
	case types.PrimEntityRemove:
		err = reduceEntityRemove(&next, payload.(*types.EntityRemovePayload))
	case types.PrimEntityMove:
		err = reduceEntityMove(&next, payload.(*types.EntityMovePayload), event.Seq)
	case types.PrimEntityReorder:
		err = reduceEntityReorder(&next, payload.(*types.EntityReorderPayload))
	case types.PrimRelSet:
		extraDeltas, err = reduceRelSet(&next, event, payload.(*types.RelSetPayload))
	case types.PrimRelRemove:
		err = reduceRelRemove(&next, payload.(*types.RelRemovePayload))
	case types.PrimStyleSet:
		reduceStyleSet(&next, payload.(*types.StyleSetPayload))
	case types.PrimStyleEntity:
		p := payload.(*types.StyleEntityPayload)
		if err = reduceStyleEntity(&next, p); err == nil {
			e := next.Entities[p.Ref]
			e.UpdatedSeq = event.Seq
			next.Entities[p.Ref] = e
		}
	case types.PrimMetaSet:
		err = reduceMetaSet(&next, payload.(*types.MetaSetPayload))
	case types.PrimMetaAnnotate:
		reduceMetaAnnotate(&next, event, payload.(*types.MetaAnnotatePayload))
	case types.PrimMetaConstrain:
		reduceMetaConstrain(&next, payload.(*types.MetaConstrainPayload))
	default:
		err = types.NewCodedError(types.CodeInvalidPayload, string(event.Type), "unrecognised mutating primitive")
	}

	if err != nil {
		return state, rejected(err)
	}

	next.LastSeq = event.Seq
	deltas := append(extraDeltas, event)
	return next, Outcome{Applied: true, Warnings: warnings, Deltas: deltas}
}
