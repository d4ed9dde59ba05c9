package render

import "github.com/aidekernel/aide/internal/types"

// inferDisplay assigns a display hint to e when it carries none of its
// own, per §4.3's inference table: image if `src` present, metric if
// `value` present and the entity has ≤3 props, checklist if any live child
// carries `done`, table if live children share ≥3 fields, otherwise
// card (no children) or list (has children).
func inferDisplay(state types.PageState, e types.Entity) types.Display {
	if e.Display != "" {
		return e.Display
	}
	if _, ok := e.Props["src"]; ok {
		return types.DisplayImage
	}
	if _, ok := e.Props["value"]; ok && len(e.Props) <= 3 {
		return types.DisplayMetric
	}

	children := state.LiveChildren(e.ID)
	for _, cid := range children {
		if _, ok := state.Entities[cid].Props["done"]; ok {
			return types.DisplayChecklist
		}
	}
	if sharedFieldCount(state, children) >= 3 {
		return types.DisplayTable
	}
	if len(children) > 0 {
		return types.DisplayList
	}
	return types.DisplayCard
}

// sharedFieldCount returns the number of prop keys common to every entity
// in childIDs. An empty or single-child set has no meaningful "shared"
// notion and returns 0.
func sharedFieldCount(state types.PageState, childIDs []string) int {
	if len(childIDs) < 2 {
		return 0
	}
	counts := make(map[string]int)
	for _, id := range childIDs {
		for k := range state.Entities[id].Props {
			counts[k]++
		}
	}
	shared := 0
	for _, c := range counts {
		if c == len(childIDs) {
			shared++
		}
	}
	return shared
}
