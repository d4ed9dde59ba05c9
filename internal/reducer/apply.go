package reducer

import "github.com/aidekernel/aide/internal/types"

// Rejection pairs a rejected event with the reason it was rejected.
type Rejection struct {
	Event  types.Event
	Reason error
}

// ApplyResult is the outcome of reducing an ordered batch of events.
type ApplyResult struct {
	State    types.PageState
	Applied  []types.Event
	Rejected []Rejection
	Warnings []string
	// Deltas concatenates every applied event's Outcome.Deltas, in the
	// order subscribers should observe them (§8: "order preservation in
	// fan-out").
	Deltas []types.Event
}

// Apply reduces events against state in order. Rejection of event k does
// not stop or skip events after it (§4.1: "Batch application" / §8:
// "partial application"); the returned state reflects every event that was
// individually accepted.
func Apply(state types.PageState, events []types.Event) ApplyResult {
	result := ApplyResult{State: state}
	for _, ev := range events {
		next, outcome := Reduce(result.State, ev)
		if !outcome.Applied {
			result.Rejected = append(result.Rejected, Rejection{Event: ev, Reason: outcome.Error})
			continue
		}
		result.State = next
		result.Applied = append(result.Applied, ev)
		result.Warnings = append(result.Warnings, outcome.Warnings...)
		result.Deltas = append(result.Deltas, outcome.Deltas...)
	}
	return result
}

// Replay folds events onto a fresh empty page state, used by
// check_integrity and repair (§4.4) and by the replay-determinism property
// (§8). Rejected events during replay indicate a corrupted or
// hand-edited log; callers should treat any non-empty Rejected as an
// integrity failure.
func Replay(pageID string, events []types.Event) ApplyResult {
	return Apply(types.NewPageState(pageID), events)
}
