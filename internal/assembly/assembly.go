// Package assembly implements the load/apply/save/create/fork/publish/
// compact/check_integrity/repair surface over a page's stored document
// (§4.4). Assembly owns the one place snapshot, event log, and blueprint are
// glued into a single self-describing document and back.
package assembly

import (
	"time"

	"github.com/google/uuid"

	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/render"
	"github.com/aidekernel/aide/internal/types"
)

// AideFile carries everything assembly operations pass around for a single
// page: the decoded snapshot and event log, the blueprint scaffold, the
// rendered document, and bookkeeping used by save/publish.
type AideFile struct {
	PageID     string
	State      types.PageState
	Events     []types.Event
	Blueprint  types.Blueprint
	Document   string
	LastSeq    uint64
	ByteSize   int
	Visibility types.Visibility
}

// rerender re-derives Document/ByteSize from State/Events/Blueprint. Called
// after any events have been applied, never on its own.
func (f *AideFile) rerender() error {
	doc, err := render.Render(f.State, f.Blueprint, f.Events)
	if err != nil {
		return err
	}
	f.Document = doc
	f.ByteSize = len(doc)
	return nil
}

// ApplyOutcome reports the per-event results of an apply call, mirroring
// reducer.ApplyResult but scoped to the file that was mutated.
type ApplyOutcome struct {
	Applied  []types.Event
	Rejected []reducer.Rejection
	Warnings []string
	Deltas   []types.Event
}

// Apply assigns monotonic sequence numbers to every event and ids and
// timestamps to events lacking them, runs the batch reducer, re-renders on any applied event,
// and updates LastSeq/ByteSize. Apply never persists; callers must call
// Save to make the result durable (§4.4 "apply... does not persist").
func Apply(file *AideFile, events []types.Event, now time.Time) (*AideFile, ApplyOutcome) {
	next := *file
	seq := next.LastSeq
	stamped := make([]types.Event, len(events))
	for i, ev := range events {
		seq++
		ev.Seq = seq
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		stamped[i] = ev
	}

	result := reducer.Apply(next.State, stamped)
	next.State = result.State
	if len(result.Applied) > 0 {
		next.Events = append(append([]types.Event{}, next.Events...), result.Applied...)
		next.LastSeq = next.State.LastSeq
		if err := next.rerender(); err != nil {
			return file, ApplyOutcome{Warnings: []string{"render failed: " + err.Error()}}
		}
	}

	return &next, ApplyOutcome{
		Applied:  result.Applied,
		Rejected: result.Rejected,
		Warnings: result.Warnings,
		Deltas:   result.Deltas,
	}
}

// Create returns a freshly-minted, unsaved AideFile: empty state, blueprint
// embedded, rendered, with no events yet (§4.4 "create").
func Create(pageID string, blueprint types.Blueprint) (*AideFile, error) {
	f := &AideFile{
		PageID:     pageID,
		State:      types.NewPageState(pageID),
		Blueprint:  blueprint,
		Visibility: types.VisibilityPrivate,
	}
	if err := f.rerender(); err != nil {
		return nil, err
	}
	return f, nil
}
