package assembly

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aidekernel/aide/internal/render"
	"github.com/aidekernel/aide/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createEvent(t *testing.T, id, parent string, display types.Display, props map[string]types.PropValue) types.Event {
	t.Helper()
	data, err := json.Marshal(types.EntityCreatePayload{ID: id, Parent: parent, Display: display, Props: props})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return types.Event{Type: types.PrimEntityCreate, Source: types.SourceWeb, Payload: data}
}

func TestCreateApplySaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := createEvent(t, "grocery", "root", types.DisplayTable, map[string]types.PropValue{
		"title": types.NewString("Groceries"),
	})
	next, outcome := Apply(file, []types.Event{ev}, now)
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejection: %+v", outcome.Rejected)
	}
	if len(outcome.Applied) != 1 {
		t.Fatalf("expected 1 applied event, got %d", len(outcome.Applied))
	}

	if err := Save(ctx, store, next); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(ctx, store, "page1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := loaded.State.Entities["grocery"]; !ok {
		t.Fatal("expected loaded state to contain the grocery entity")
	}
	if loaded.Blueprint != DefaultBlueprint {
		t.Fatalf("blueprint mismatch: got %+v want %+v", loaded.Blueprint, DefaultBlueprint)
	}
	if len(loaded.Events) != 1 {
		t.Fatalf("expected 1 event in loaded file, got %d", len(loaded.Events))
	}
}

func TestApplyAssignsUniqueNonEmptyEventIDs(t *testing.T) {
	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []types.Event{
		createEvent(t, "grocery", "root", types.DisplayTable, nil),
		createEvent(t, "chores", "root", types.DisplayList, nil),
	}
	_, outcome := Apply(file, events, now)
	if len(outcome.Applied) != 2 {
		t.Fatalf("expected 2 applied events, got %d", len(outcome.Applied))
	}

	seen := make(map[string]bool, len(outcome.Applied))
	for _, ev := range outcome.Applied {
		if ev.ID == "" {
			t.Fatal("expected a non-empty event id")
		}
		if seen[ev.ID] {
			t.Fatalf("duplicate event id %q", ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestLoadMissingPageReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := Load(context.Background(), store, "does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestForkClearsEventsAndAssignsNewID(t *testing.T) {
	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	next, outcome := Apply(file, []types.Event{createEvent(t, "a", "root", types.DisplayCard, nil)}, time.Now().UTC())
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejection: %+v", outcome.Rejected)
	}

	forked, err := Fork(next)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if forked.PageID == next.PageID {
		t.Fatal("expected fork to assign a new page id")
	}
	if len(forked.Events) != 0 {
		t.Fatal("expected fork to clear events")
	}
	if _, ok := forked.State.Entities["a"]; !ok {
		t.Fatal("expected fork to retain the entity tree")
	}
	if forked.State.Entities["a"].CreatedSeq != 0 {
		t.Fatal("expected fork to clear per-entity sequence metadata")
	}
}

func TestPublishStripsEventsOverLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	next, outcome := Apply(file, []types.Event{createEvent(t, "counter", "root", types.DisplayMetric, map[string]types.PropValue{
		"value": types.NewNumber(0),
	})}, time.Now().UTC())
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", outcome.Rejected)
	}

	// Repeatedly update the same entity so the event count exceeds the
	// publish threshold without approaching the entities-per-page cap.
	var updates []types.Event
	for i := 0; i < maxPublishedEvents+5; i++ {
		data, err := json.Marshal(types.EntityUpdatePayload{
			Ref:   "counter",
			Props: map[string]types.PropValue{"value": types.NewNumber(float64(i))},
		})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		updates = append(updates, types.Event{Type: types.PrimEntityUpdate, Source: types.SourceWeb, Payload: data})
	}
	next, outcome = Apply(next, updates, time.Now().UTC())
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", outcome.Rejected)
	}

	result, err := Publish(ctx, store, next, "paid", 0)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	published, err := store.LoadPublished(ctx, result.Slug)
	if err != nil {
		t.Fatalf("LoadPublished: %v", err)
	}
	_, _, publishedEvents, err := render.Parse(published.Document)
	if err != nil {
		t.Fatalf("parse published document: %v", err)
	}
	if len(publishedEvents) != 0 {
		t.Fatalf("expected event log stripped, got %d events", len(publishedEvents))
	}
}

func TestPublishInjectsFooterForFreeTier(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	result, err := Publish(ctx, store, file, TierFree, 0)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	published, err := store.LoadPublished(ctx, result.Slug)
	if err != nil {
		t.Fatalf("LoadPublished: %v", err)
	}
	_, snapshot, _, err := render.Parse(published.Document)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := snapshot.Entities[footerEntityID]; !ok {
		t.Fatal("expected footer entity to be injected for free tier")
	}
}

func TestCompactKeepsSnapshotDropsPrefixEvents(t *testing.T) {
	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var events []types.Event
	for i := 0; i < 5; i++ {
		events = append(events, createEvent(t, entityIDFor(i), "root", types.DisplayCard, nil))
	}
	next, outcome := Apply(file, events, time.Now().UTC())
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", outcome.Rejected)
	}

	compacted, err := Compact(next, 2)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(compacted.Events) != 2 {
		t.Fatalf("expected 2 events retained, got %d", len(compacted.Events))
	}
	if len(compacted.State.Entities) != len(next.State.Entities) {
		t.Fatal("expected compact to leave the snapshot unchanged")
	}
}

func TestCheckIntegrityReportsSequenceGap(t *testing.T) {
	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	next, outcome := Apply(file, []types.Event{
		createEvent(t, "a", "root", types.DisplayCard, nil),
		createEvent(t, "b", "root", types.DisplayCard, nil),
	}, time.Now().UTC())
	if len(outcome.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", outcome.Rejected)
	}
	// Introduce a sequence gap directly, between the two applied events.
	next.Events[1].Seq = next.Events[1].Seq + 5

	report := CheckIntegrity(next)
	if report.OK {
		t.Fatal("expected integrity report to flag the sequence gap")
	}
	if len(report.SequenceGaps) != 1 {
		t.Fatalf("expected exactly one sequence gap, got %d", len(report.SequenceGaps))
	}
}

func TestRepairRebuildsSnapshotFromEvents(t *testing.T) {
	file, err := Create("page1", DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	next, _ := Apply(file, []types.Event{createEvent(t, "a", "root", types.DisplayCard, nil)}, time.Now().UTC())

	// Corrupt the in-memory snapshot without touching the event log.
	corrupted := *next
	corrupted.State = types.NewPageState(next.PageID)

	repaired, err := Repair(&corrupted)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if _, ok := repaired.State.Entities["a"]; !ok {
		t.Fatal("expected repair to restore entity 'a' from the event log")
	}
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// entityIDFor returns a distinct, valid (lowercase alphanumeric) entity id
// for index i, supporting however many ids a test needs without colliding.
func entityIDFor(i int) string {
	if i == 0 {
		return "e0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{idAlphabet[i%len(idAlphabet)]}, b...)
		i /= len(idAlphabet)
	}
	return "e" + string(b)
}
