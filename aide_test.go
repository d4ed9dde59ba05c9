package aide_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aidekernel/aide"
)

func newTestStore(t *testing.T) *aide.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := aide.OpenStore(context.Background(), filepath.Join(dir, "aide.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	pageID := aide.NewPageID()
	file, err := aide.Create(pageID, aide.DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := aide.Save(ctx, store, file); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := aide.Load(ctx, store, pageID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PageID != pageID {
		t.Errorf("PageID = %q, want %q", loaded.PageID, pageID)
	}
	if _, ok := loaded.State.Entities[aide.RootID]; !ok {
		t.Error("expected root entity in loaded state")
	}
}

func TestForkAssignsNewPageID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	original, err := aide.Create(aide.NewPageID(), aide.DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := aide.Save(ctx, store, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	forked, err := aide.Fork(original)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if forked.PageID == original.PageID {
		t.Error("expected fork to assign a new page id")
	}
}

func TestPublishReturnsURLBuiltFromSlug(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	file, err := aide.Create(aide.NewPageID(), aide.DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := aide.Publish(ctx, store, file, "paid", 8)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Slug == "" {
		t.Error("expected a non-empty slug")
	}
	if result.URL != "/p/"+result.Slug {
		t.Errorf("URL = %q, want /p/%s", result.URL, result.Slug)
	}
}

func TestCheckIntegrityOnFreshPageIsOK(t *testing.T) {
	file, err := aide.Create(aide.NewPageID(), aide.DefaultBlueprint)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	report := aide.CheckIntegrity(file)
	if !report.OK {
		t.Errorf("expected a fresh page to pass integrity check, got %+v", report)
	}
}
