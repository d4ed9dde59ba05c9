package reducer

import (
	"github.com/aidekernel/aide/internal/registry"
	"github.com/aidekernel/aide/internal/types"
)

func reduceEntityCreate(state *types.PageState, event types.Event, p *types.EntityCreatePayload) ([]string, error) {
	if _, exists := state.Entities[p.ID]; exists {
		// IDs are permanent: a prior holder, live or removed, blocks reuse
		// (§4.2 "soft-remove semantics").
		return nil, types.NewCodedError(types.CodeIDAlreadyExists, p.ID, "id already exists")
	}
	parent, ok := state.Entities[p.Parent]
	if !ok {
		return nil, types.NewCodedError(types.CodeParentNotFound, p.Parent, "parent not found")
	}
	if !parent.IsLive() {
		return nil, types.NewCodedError(types.CodeParentNotFound, p.Parent, "parent is removed")
	}

	var warnings []string

	liveCount := countLiveEntities(state)
	if c := registry.CheckEntitiesPerPage(liveCount + 1); c.Err != nil {
		return nil, c.Err
	} else if c.Warning != "" {
		warnings = append(warnings, c.Warning)
	}

	childCount := len(state.LiveChildren(p.Parent))
	if c := registry.CheckChildrenPerParent(childCount + 1); c.Err != nil {
		return nil, c.Err
	} else if c.Warning != "" {
		warnings = append(warnings, c.Warning)
	}

	if p.Display == types.DisplaySection {
		sectionCount := countLiveByDisplay(state, types.DisplaySection)
		if c := registry.CheckSectionsPerPage(sectionCount + 1); c.Err != nil {
			return nil, c.Err
		} else if c.Warning != "" {
			warnings = append(warnings, c.Warning)
		}
	}

	if w, err := checkPropCapacity(p.Props); err != nil {
		return nil, err
	} else {
		warnings = append(warnings, w...)
	}

	state.Entities[p.ID] = types.Entity{
		ID:         p.ID,
		ParentID:   p.Parent,
		Display:    p.Display,
		Props:      clonePropMap(p.Props),
		State:      types.Live,
		CreatedSeq: event.Seq,
		UpdatedSeq: event.Seq,
	}
	return warnings, nil
}

func reduceEntityUpdate(state *types.PageState, event types.Event, p *types.EntityUpdatePayload) ([]string, error) {
	e, ok := state.Entities[p.Ref]
	if !ok {
		return nil, types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref not found")
	}
	if !e.IsLive() {
		return nil, types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref is removed")
	}

	merged := e.Clone()
	if merged.Props == nil {
		merged.Props = make(map[string]types.PropValue, len(p.Props))
	}
	for k, v := range p.Props {
		merged.Props[k] = v
	}

	warnings, err := checkPropCapacity(merged.Props)
	if err != nil {
		return nil, err
	}

	merged.UpdatedSeq = event.Seq
	state.Entities[p.Ref] = merged
	return warnings, nil
}

func reduceEntityRemove(state *types.PageState, p *types.EntityRemovePayload) error {
	if p.Ref == types.RootID {
		return types.NewCodedError(types.CodeInvalidPayload, types.RootID, "root cannot be removed")
	}
	e, ok := state.Entities[p.Ref]
	if !ok {
		return types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref not found")
	}
	e.State = types.Removed
	state.Entities[p.Ref] = e
	return nil
}

func reduceEntityMove(state *types.PageState, p *types.EntityMovePayload, seq uint64) error {
	e, ok := state.Entities[p.Ref]
	if !ok || !e.IsLive() {
		return types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref not found")
	}
	newParent, ok := state.Entities[p.Parent]
	if !ok || !newParent.IsLive() {
		return types.NewCodedError(types.CodeParentNotFound, p.Parent, "parent not found")
	}
	if p.Ref == p.Parent || isAncestor(state, p.Ref, p.Parent) {
		return types.NewCodedError(types.CodeCycle, p.Ref, "move would introduce a cycle")
	}

	siblings := state.LiveChildren(p.Parent)
	// Remove ref if it was already a child of the new parent (a no-op
	// reparent used purely to reposition).
	filtered := make([]string, 0, len(siblings))
	for _, id := range siblings {
		if id != p.Ref {
			filtered = append(filtered, id)
		}
	}
	pos := len(filtered)
	if p.Position != nil {
		pos = *p.Position
		if pos > len(filtered) {
			pos = len(filtered)
		}
	}
	ordered := make([]string, 0, len(filtered)+1)
	ordered = append(ordered, filtered[:pos]...)
	ordered = append(ordered, p.Ref)
	ordered = append(ordered, filtered[pos:]...)

	for i, id := range ordered {
		ent := state.Entities[id]
		ent.OrderKey = int64(i)
		if id == p.Ref {
			ent.ParentID = p.Parent
			ent.UpdatedSeq = seq
		}
		state.Entities[id] = ent
	}
	return nil
}

func reduceEntityReorder(state *types.PageState, p *types.EntityReorderPayload) error {
	if _, ok := state.Entities[p.Ref]; !ok {
		return types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref not found")
	}
	current := state.LiveChildren(p.Ref)
	if !samePermutation(current, p.Children) {
		return types.NewCodedError(types.CodeInvalidPayload, p.Ref, "children is not a permutation of current live children")
	}
	for i, id := range p.Children {
		ent := state.Entities[id]
		ent.OrderKey = int64(i)
		state.Entities[id] = ent
	}
	return nil
}

// isAncestor reports whether candidate is an ancestor of node (walking up
// node's parent chain), which would make moving node under candidate a
// cycle (§3.6 invariant 2).
func isAncestor(state *types.PageState, candidate, node string) bool {
	seen := map[string]bool{}
	cur := node
	for {
		e, ok := state.Entities[cur]
		if !ok || e.ParentID == "" {
			return false
		}
		if e.ParentID == candidate {
			return true
		}
		if seen[e.ParentID] {
			return false // defensive: already-corrupt graph, stop rather than loop forever
		}
		seen[e.ParentID] = true
		cur = e.ParentID
	}
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func countLiveEntities(state *types.PageState) int {
	n := 0
	for id, e := range state.Entities {
		if id != types.RootID && e.IsLive() {
			n++
		}
	}
	return n
}

func countLiveByDisplay(state *types.PageState, d types.Display) int {
	n := 0
	for _, e := range state.Entities {
		if e.IsLive() && e.Display == d {
			n++
		}
	}
	return n
}

func clonePropMap(props map[string]types.PropValue) map[string]types.PropValue {
	if props == nil {
		return nil
	}
	out := make(map[string]types.PropValue, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// checkPropCapacity runs the fields-per-entity, list-prop-length, and
// nesting-depth capacity checks (§7) over a prop map, returning soft-limit
// warnings or a hard-limit error.
func checkPropCapacity(props map[string]types.PropValue) ([]string, error) {
	var warnings []string
	if c := registry.CheckFieldsPerEntity(len(props)); c.Err != nil {
		return nil, c.Err
	} else if c.Warning != "" {
		warnings = append(warnings, c.Warning)
	}
	for _, v := range props {
		if v.Kind == types.PropArray {
			if c := registry.CheckListPropLength(v.Len()); c.Err != nil {
				return nil, c.Err
			} else if c.Warning != "" {
				warnings = append(warnings, c.Warning)
			}
		}
		if c := registry.CheckNestingDepth(v.Depth()); c.Err != nil {
			return nil, c.Err
		} else if c.Warning != "" {
			warnings = append(warnings, c.Warning)
		}
	}
	return warnings, nil
}
