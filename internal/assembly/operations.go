package assembly

import (
	"context"
	"fmt"

	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/render"
	"github.com/aidekernel/aide/internal/types"
)

const maxPublishedEvents = 500

// Load fetches the stored workspace document for pageID, parses it, and
// returns an AideFile (§4.4 "load"). It rejects a stored snapshot whose
// version exceeds what this kernel understands (§6.1).
func Load(ctx context.Context, store *Store, pageID string) (*AideFile, error) {
	doc, err := store.LoadWorkspace(ctx, pageID)
	if err != nil {
		return nil, err
	}

	blueprint, snapshot, events, err := render.Parse(doc.Document)
	if err != nil {
		return nil, fmt.Errorf("assembly: parse stored document for %s: %w", pageID, err)
	}
	if snapshot == nil {
		return nil, types.NewCodedError(types.CodeIntegrityFailure, pageID, "stored document has no snapshot block")
	}
	if snapshot.Version > types.SnapshotVersion {
		return nil, types.NewCodedError(types.CodeUnsupportedVersion, pageID,
			fmt.Sprintf("snapshot version %d exceeds supported version %d", snapshot.Version, types.SnapshotVersion))
	}

	f := &AideFile{
		PageID:   pageID,
		State:    *snapshot,
		Events:   events,
		Document: doc.Document,
		LastSeq:  doc.LastSeq,
		ByteSize: doc.ByteSize,
	}
	if blueprint != nil {
		f.Blueprint = *blueprint
	}
	f.Visibility = snapshot.Meta.Visibility
	return f, nil
}

// Save atomically writes file's document to the workspace store. On failure
// it retries once before surfacing the error (§4.4 "save", §7 "Save
// failure"). Last-write-wins; a per-page lock upstream (§5) ensures a
// single writer.
func Save(ctx context.Context, store *Store, file *AideFile) error {
	doc := storedDocument{
		Document: file.Document,
		LastSeq:  file.LastSeq,
		ByteSize: file.ByteSize,
	}
	err := store.SaveWorkspace(ctx, file.PageID, doc)
	if err == nil {
		return nil
	}
	// Retry once before surfacing.
	if err2 := store.SaveWorkspace(ctx, file.PageID, doc); err2 != nil {
		return fmt.Errorf("assembly: save %s failed twice: first=%v second=%w", file.PageID, err, err2)
	}
	return nil
}

// Fork deep-copies state and blueprint, clears events and per-entity
// sequence metadata, assigns a new page id, and re-renders (§4.4 "fork").
// The new file is not saved.
func Fork(file *AideFile) (*AideFile, error) {
	newID := NewPageID()
	cloned := file.State.Clone()
	cloned.PageID = newID
	cloned.LastSeq = 0
	for id, e := range cloned.Entities {
		e.CreatedSeq = 0
		e.UpdatedSeq = 0
		cloned.Entities[id] = e
	}

	forked := &AideFile{
		PageID:     newID,
		State:      cloned,
		Blueprint:  file.Blueprint,
		Visibility: types.VisibilityPrivate,
	}
	if err := forked.rerender(); err != nil {
		return nil, err
	}
	return forked, nil
}

// PublishResult reports the outcome of a publish call.
type PublishResult struct {
	Slug string
	URL  string
}

// TierFree is the actor tier that triggers footer injection on publish
// (§4.4 "publish", §6.2 "actor's tier is free").
const TierFree = "free"

// Publish writes a public copy of file's document to the published store,
// stripping the event log when it exceeds 500 events and injecting a
// footer when actorTier is free (§4.4, §6.2). It returns the assigned slug
// and a public URL built from it.
func Publish(ctx context.Context, store *Store, file *AideFile, actorTier string, slugLen int) (PublishResult, error) {
	slug, err := NewSlug(slugLen)
	if err != nil {
		return PublishResult{}, fmt.Errorf("assembly: mint slug: %w", err)
	}

	publishEvents := file.Events
	if len(publishEvents) > maxPublishedEvents {
		publishEvents = nil
	}

	publishState := file.State
	publishState.Meta.Visibility = types.VisibilityPublished
	if actorTier == TierFree {
		publishState = injectFooter(publishState)
	}

	doc, err := render.Render(publishState, file.Blueprint, publishEvents)
	if err != nil {
		return PublishResult{}, fmt.Errorf("assembly: render published document: %w", err)
	}

	err = store.SavePublished(ctx, slug, storedDocument{
		Document: doc,
		LastSeq:  file.LastSeq,
		ByteSize: len(doc),
	})
	if err != nil {
		return PublishResult{}, err
	}

	return PublishResult{Slug: slug, URL: "/p/" + slug}, nil
}

const footerEntityID = "_published_footer"

// injectFooter adds a read-only footer entity under root advertising the
// free tier, without touching LastSeq/events since this is a published-only
// presentational overlay, not a reducer mutation.
func injectFooter(state types.PageState) types.PageState {
	cloned := state.Clone()
	cloned.Entities[footerEntityID] = types.Entity{
		ID:      footerEntityID,
		ParentID: types.RootID,
		Display: types.DisplayText,
		Props: map[string]types.PropValue{
			"text": types.NewString("Made with AIde (free tier)"),
		},
		State:      types.Live,
		CreatedSeq: cloned.LastSeq,
		UpdatedSeq: cloned.LastSeq,
		OrderKey:   1 << 30, // sort to the end
	}
	return cloned
}

// Compact drops prefix events, keeping the last keepRecent, and re-renders;
// the snapshot itself is unchanged (§4.4 "compact").
func Compact(file *AideFile, keepRecent int) (*AideFile, error) {
	next := *file
	if keepRecent >= 0 && len(next.Events) > keepRecent {
		next.Events = append([]types.Event{}, next.Events[len(next.Events)-keepRecent:]...)
	}
	if err := next.rerender(); err != nil {
		return nil, err
	}
	return &next, nil
}

// IntegrityReport describes the outcome of check_integrity (§4.4).
type IntegrityReport struct {
	OK                 bool
	SequenceGaps       []uint64
	BrokenParentRefs    []string
	UnknownRelEndpoints []string
}

// CheckIntegrity replays file's events from empty state, reporting sequence
// gaps, broken parent references, and unknown relationship endpoints in the
// replayed state (§4.4). The comparison against the stored snapshot covers
// only the number of entities; entity contents, relationships, and meta are
// not compared.
func CheckIntegrity(file *AideFile) IntegrityReport {
	report := IntegrityReport{OK: true}

	var lastSeq uint64
	for _, ev := range file.Events {
		if lastSeq != 0 && ev.Seq != lastSeq+1 {
			report.SequenceGaps = append(report.SequenceGaps, ev.Seq)
			report.OK = false
		}
		lastSeq = ev.Seq
	}

	replayed := reducer.Replay(file.PageID, file.Events).State

	for id, e := range replayed.Entities {
		if !e.IsLive() || id == types.RootID {
			continue
		}
		parent, ok := replayed.Entities[e.ParentID]
		if !ok || !parent.IsLive() {
			report.BrokenParentRefs = append(report.BrokenParentRefs, id)
			report.OK = false
		}
	}
	for _, rel := range replayed.Relationships {
		from, fromOK := replayed.Entities[rel.From]
		to, toOK := replayed.Entities[rel.To]
		if !fromOK || !from.IsLive() || !toOK || !to.IsLive() {
			report.UnknownRelEndpoints = append(report.UnknownRelEndpoints, rel.Key())
			report.OK = false
		}
	}

	if len(replayed.Entities) != len(file.State.Entities) {
		report.OK = false
	}

	return report
}

// Repair rebuilds the snapshot by replaying file's event log from empty
// state, then re-renders (§4.4 "repair").
func Repair(file *AideFile) (*AideFile, error) {
	next := *file
	next.State = reducer.Replay(file.PageID, file.Events).State
	if err := next.rerender(); err != nil {
		return nil, err
	}
	return &next, nil
}
