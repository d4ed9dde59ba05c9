package reducer

import (
	"encoding/json"

	"github.com/aidekernel/aide/internal/types"
)

func reduceRelSet(state *types.PageState, event types.Event, p *types.RelSetPayload) ([]types.Event, error) {
	fromE, ok := state.Entities[p.From]
	if !ok || !fromE.IsLive() {
		return nil, types.NewCodedError(types.CodeIDNotFound, p.From, "from endpoint not found")
	}
	toE, ok := state.Entities[p.To]
	if !ok || !toE.IsLive() {
		return nil, types.NewCodedError(types.CodeIDNotFound, p.To, "to endpoint not found")
	}

	if existing, ok := state.RelationshipTypes[p.Type]; ok {
		if existing != p.Cardinality {
			return nil, types.NewCodedError(types.CodeCardinalityConflict, p.Type, "relationship type cardinality cannot change once set")
		}
	} else {
		state.RelationshipTypes[p.Type] = p.Cardinality
	}

	var evicted []types.Relationship
	switch p.Cardinality {
	case types.ManyToOne:
		// Each source maps to one target: drop any existing (from, *, type).
		state.Relationships, evicted = evictMatching(state.Relationships, func(r types.Relationship) bool {
			return r.From == p.From && r.Type == p.Type
		})
	case types.OneToOne:
		// Both endpoints exclusive: drop (from, *, type) and (*, to, type).
		state.Relationships, evicted = evictMatching(state.Relationships, func(r types.Relationship) bool {
			return (r.From == p.From || r.To == p.To) && r.Type == p.Type
		})
	case types.ManyToMany:
		// No auto-removal.
	}

	state.Relationships = append(state.Relationships, types.Relationship{From: p.From, To: p.To, Type: p.Type})

	deltas := make([]types.Event, 0, len(evicted))
	for _, r := range evicted {
		deltas = append(deltas, syntheticRelRemove(event, r))
	}
	return deltas, nil
}

func reduceRelRemove(state *types.PageState, p *types.RelRemovePayload) error {
	found := false
	kept := make([]types.Relationship, 0, len(state.Relationships))
	for _, r := range state.Relationships {
		if r.From == p.From && r.To == p.To && r.Type == p.Type {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return types.NewCodedError(types.CodeIDNotFound, p.Type, "edge not present")
	}
	state.Relationships = kept
	return nil
}

// evictMatching removes every relationship matching pred from edges,
// returning the filtered slice and the removed edges in their original
// order.
func evictMatching(edges []types.Relationship, pred func(types.Relationship) bool) ([]types.Relationship, []types.Relationship) {
	kept := make([]types.Relationship, 0, len(edges))
	var evicted []types.Relationship
	for _, r := range edges {
		if pred(r) {
			evicted = append(evicted, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, evicted
}

// syntheticRelRemove builds the delta event representing an edge the
// reducer itself evicted as part of a cardinality swap (§4.2), sharing the
// triggering event's sequence and turn/batch attribution but carrying its
// own rel.remove payload.
func syntheticRelRemove(trigger types.Event, evicted types.Relationship) types.Event {
	payload, _ := json.Marshal(types.RelRemovePayload{From: evicted.From, To: evicted.To, Type: evicted.Type})
	return types.Event{
		ID:        trigger.ID + "-evict-" + evicted.Key(),
		Seq:       trigger.Seq,
		Timestamp: trigger.Timestamp,
		Actor:     trigger.Actor,
		Source:    types.SourceSystem,
		Type:      types.PrimRelRemove,
		Payload:   payload,
		TurnID:    trigger.TurnID,
		BatchID:   trigger.BatchID,
	}
}
